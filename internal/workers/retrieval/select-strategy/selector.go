// internal/workers/retrieval/select-strategy/selector.go
package selectstrategy

import "finqa-agent/internal/models"

const Stage = "select-strategy"

// Select picks the retrieval strategy for a sub-query. Filters only carry
// fields the sub-query actually sets.
func Select(sq models.SubQuery, queryType models.QueryType) (models.StrategyKind, models.MetadataFilter) {
	filter := models.MetadataFilter{}

	switch queryType {
	case models.QueryTypeCrossCompany:
		if sq.Company != "" {
			filter[models.FilterCompany] = sq.Company
		}
		return models.StrategyCompanyFocused, filter

	case models.QueryTypeComparativeYoY:
		if sq.Year > 0 {
			filter[models.FilterYear] = sq.Year
		}
		return models.StrategyTemporal, filter

	case models.QueryTypeSegmentAnalysis, models.QueryTypeComplexMultiAspect:
		if sq.Company != "" {
			filter[models.FilterCompany] = sq.Company
		}
		if sq.Year > 0 {
			filter[models.FilterYear] = sq.Year
		}
		if sq.Metric != "" {
			filter[models.FilterMetric] = sq.Metric
		}
		return models.StrategyHybrid, filter

	default:
		return models.StrategySemantic, filter
	}
}

// Apply annotates every sub-query with its strategy and filter.
func Apply(subQueries []models.SubQuery, queryType models.QueryType) []models.SubQuery {
	out := make([]models.SubQuery, len(subQueries))
	for i, sq := range subQueries {
		sq.Strategy, sq.Filter = Select(sq, queryType)
		out[i] = sq
	}
	return out
}
