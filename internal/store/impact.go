package store

// RiskLevel classifies impact based on BFS hop depth.
type RiskLevel string

const (
	RiskCritical RiskLevel = "CRITICAL"
	RiskHigh     RiskLevel = "HIGH"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskLow      RiskLevel = "LOW"
)

// HopToRisk maps a BFS hop depth to a risk level.
func HopToRisk(hop int) RiskLevel {
	switch hop {
	case 1:
		return RiskCritical
	case 2:
		return RiskHigh
	case 3:
		return RiskMedium
	default:
		return RiskLow
	}
}

// ImpactSummary aggregates risk counts from an inbound traversal.
type ImpactSummary struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Total    int `json:"total"`
}

// BuildImpactSummary computes the risk distribution of visited hops.
func BuildImpactSummary(hops []*NodeHop) ImpactSummary {
	var s ImpactSummary
	for _, nh := range hops {
		switch HopToRisk(nh.Hop) {
		case RiskCritical:
			s.Critical++
		case RiskHigh:
			s.High++
		case RiskMedium:
			s.Medium++
		case RiskLow:
			s.Low++
		}
		s.Total++
	}
	return s
}

// Impact returns every declaration that transitively uses fqn, up to
// maxDepth hops, with its risk summary.
func (s *Store) Impact(project, fqn string, maxDepth int) (*TraverseResult, ImpactSummary, error) {
	res, err := s.BFS(project, fqn, Inbound, maxDepth, 0)
	if err != nil {
		return nil, ImpactSummary{}, err
	}
	return res, BuildImpactSummary(res.Visited), nil
}
