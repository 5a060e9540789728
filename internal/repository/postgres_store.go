package repository

import "github.com/jmoiron/sqlx"

// PostgresStore bundles the sqlx repositories behind the Store interface.
type PostgresStore struct {
	*AreaRepository
	*VegetationIndexRepository
	*ConfigurationRepository
	*SatelliteImageRepository
	*MonitoringRecordRepository
	*AlertRepository
	*ExecutionRepository
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{
		AreaRepository:             NewAreaRepository(db),
		VegetationIndexRepository:  NewVegetationIndexRepository(db),
		ConfigurationRepository:    NewConfigurationRepository(db),
		SatelliteImageRepository:   NewSatelliteImageRepository(db),
		MonitoringRecordRepository: NewMonitoringRecordRepository(db),
		AlertRepository:            NewAlertRepository(db),
		ExecutionRepository:        NewExecutionRepository(db),
	}
}
