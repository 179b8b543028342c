// Package oracle reads anomalies from the enterprise maintenance database.
// Only a simulated feed exists; real connectivity is not implemented.
package oracle

import (
	"context"
	"fmt"

	"github.com/Pedro-99/taqa-backend/internal/domain"
	"github.com/Pedro-99/taqa-backend/internal/normalizer"
	"github.com/Pedro-99/taqa-backend/pkg/logger"
)

// Config holds Oracle connection and sync settings.
type Config struct {
	Simulate      bool   `mapstructure:"simulate"`
	ConnectString string `mapstructure:"connect_string"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	SyncSchedule  string `mapstructure:"sync_schedule"`
}

// DefaultConfig serves the simulated feed and does not schedule syncs.
func DefaultConfig() Config {
	return Config{Simulate: true}
}

// Source fetches raw anomaly rows keyed by the Oracle column labels.
type Source struct {
	cfg Config
}

func NewSource(cfg Config) *Source {
	return &Source{cfg: cfg}
}

// Fetch returns the rows to ingest. With simulation disabled it fails with
// domain.ErrNotImplemented.
func (s *Source) Fetch(ctx context.Context) ([]normalizer.RawRecord, error) {
	log := logger.FromContext(ctx).With("component", "oracle")
	if !s.cfg.Simulate {
		if err := s.Connect(ctx); err != nil {
			return nil, err
		}
		return s.Query(ctx, "SELECT * FROM anomalies")
	}

	records := simulatedRecords()
	log.Info("Fetched records from Oracle", "count", len(records), "simulated", true)
	return records, nil
}

// Connect opens a session on the Oracle database.
func (s *Source) Connect(context.Context) error {
	return fmt.Errorf("%w: oracle connection", domain.ErrNotImplemented)
}

// Query runs query against the Oracle database.
func (s *Source) Query(context.Context, string) ([]normalizer.RawRecord, error) {
	return nil, fmt.Errorf("%w: oracle query execution", domain.ErrNotImplemented)
}

func simulatedRecords() []normalizer.RawRecord {
	return []normalizer.RawRecord{
		{
			"Num_equipement":                  "EQ_ORACLE_001",
			"Description":                     "Vibration anormale détectée",
			"Date de detection de l'anomalie": "2024-01-23T09:30:00Z",
			"Statut":                          "Nouveau",
			"Priorité":                        "1",
			"Description equipement":          "Pompe centrifuge principale",
			"Section proprietaire":            "Maintenance Hydraulique",
		},
		{
			"Num_equipement":                  "EQ_ORACLE_002",
			"Description":                     "Température élevée sur roulement",
			"Date de detection de l'anomalie": "2024-01-23T10:15:00Z",
			"Statut":                          "En cours",
			"Priorité":                        "2",
			"Description equipement":          "Moteur électrique 750KW",
			"Section proprietaire":            "Maintenance Électrique",
		},
		{
			"Num_equipement":                  "EQ_ORACLE_003",
			"Description":                     "Pression hydraulique insuffisante",
			"Date de detection de l'anomalie": "2024-01-23T11:00:00Z",
			"Statut":                          "Nouveau",
			"Priorité":                        "1",
			"Description equipement":          "Circuit hydraulique presse",
			"Section proprietaire":            "Hydraulique",
		},
	}
}
