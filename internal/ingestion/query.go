package ingestion

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Pedro-99/taqa-backend/internal/domain"
	"github.com/Pedro-99/taqa-backend/internal/normalizer"

	"github.com/go-viper/mapstructure/v2"
)

type listParams struct {
	Status             string `mapstructure:"status"`
	Priority           *int   `mapstructure:"priority"`
	EquipmentNumber    string `mapstructure:"equipment_number"`
	Section            string `mapstructure:"section"`
	ResponsibleSection string `mapstructure:"responsible_section"`
	StartDate          string `mapstructure:"start_date"`
	EndDate            string `mapstructure:"end_date"`
	Criticality        string `mapstructure:"criticality"`
	Limit              int    `mapstructure:"limit"`
}

// ParseListFilter decodes anomaly list query parameters. Blank parameters are
// ignored; malformed ones are validation errors.
func ParseListFilter(values url.Values) (domain.AnomalyFilter, error) {
	var filter domain.AnomalyFilter

	input := make(map[string]any, len(values))
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		if v := strings.TrimSpace(vals[0]); v != "" {
			input[key] = v
		}
	}

	var params listParams
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &params,
	})
	if err != nil {
		return filter, fmt.Errorf("failed to build query decoder: %w", err)
	}
	if err := decoder.Decode(input); err != nil {
		return filter, fmt.Errorf("%w: invalid query parameters: %v", domain.ErrValidation, err)
	}

	if params.Status != "" {
		status := domain.Status(strings.ToLower(params.Status))
		if !status.Valid() {
			return filter, fmt.Errorf("%w: invalid status %q", domain.ErrValidation, params.Status)
		}
		filter.Status = &status
	}
	if params.Priority != nil {
		if *params.Priority < domain.MinPriority || *params.Priority > domain.MaxPriority {
			return filter, fmt.Errorf("%w: priority must be between %d and %d", domain.ErrValidation, domain.MinPriority, domain.MaxPriority)
		}
		filter.Priority = params.Priority
	}
	if params.Criticality != "" {
		criticality := domain.Criticality(strings.ToLower(params.Criticality))
		if !criticality.Valid() {
			return filter, fmt.Errorf("%w: invalid criticality %q", domain.ErrValidation, params.Criticality)
		}
		filter.Criticality = &criticality
	}

	filter.EquipmentNumber = params.EquipmentNumber
	filter.ResponsibleSection = params.ResponsibleSection
	if filter.ResponsibleSection == "" {
		filter.ResponsibleSection = params.Section
	}

	if params.StartDate != "" {
		ts, ok := normalizer.ParseTimestamp(params.StartDate)
		if !ok {
			return filter, fmt.Errorf("%w: invalid start_date %q", domain.ErrValidation, params.StartDate)
		}
		filter.DetectedFrom = &ts
	}
	if params.EndDate != "" {
		ts, ok := normalizer.ParseTimestamp(params.EndDate)
		if !ok {
			return filter, fmt.Errorf("%w: invalid end_date %q", domain.ErrValidation, params.EndDate)
		}
		filter.DetectedTo = &ts
	}

	if params.Limit < 0 {
		return filter, fmt.Errorf("%w: limit must not be negative", domain.ErrValidation)
	}
	filter.Limit = params.Limit

	return filter, nil
}
