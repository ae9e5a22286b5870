package types

// ProjectConfig represents the top-level gridpulse.yaml configuration.
type ProjectConfig struct {
	Store        string           `yaml:"store"` // memory | redis | dynamodb
	Redis        *RedisConfig     `yaml:"redis,omitempty"`
	DynamoDB     *DynamoDBConfig  `yaml:"dynamodb,omitempty"`
	Server       *ServerConfig    `yaml:"server,omitempty"`
	Scheduler    *SchedulerConfig `yaml:"scheduler,omitempty"`
	Forecast     *ForecastConfig  `yaml:"forecast,omitempty"`
	Anomaly      *AnomalyConfig   `yaml:"anomaly,omitempty"`
	Risk         *RiskConfig      `yaml:"risk,omitempty"`
	Ingest       *IngestConfig    `yaml:"ingest,omitempty"`
	Archiver     *ArchiverConfig  `yaml:"archiver,omitempty"`
	Alerts       []SinkConfig     `yaml:"alerts,omitempty"`
	PolicyFile   string           `yaml:"policyFile"`
	TopologyFile string           `yaml:"topologyFile"`
}

// RedisConfig holds Redis/Valkey connection and store settings.
type RedisConfig struct {
	Addr         string `yaml:"addr"`
	Password     string `yaml:"password,omitempty"`
	DB           int    `yaml:"db,omitempty"`
	KeyPrefix    string `yaml:"keyPrefix"`
	RetentionTTL string `yaml:"retentionTtl,omitempty"` // default "168h" (7 days)
	HistoryLimit int    `yaml:"historyLimit,omitempty"` // per-zone risk/alert index cap
}

// DynamoDBConfig holds DynamoDB connection and table settings.
type DynamoDBConfig struct {
	TableName    string `yaml:"tableName"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint,omitempty"` // DynamoDB Local
	RetentionTTL string `yaml:"retentionTtl,omitempty"`
	CreateTable  bool   `yaml:"createTable,omitempty"`
}

// ServerConfig holds HTTP API server settings.
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	APIKey         string `yaml:"apiKey,omitempty"`
	MaxRequestBody int64  `yaml:"maxRequestBody,omitempty"`
}

// SchedulerConfig drives the recurring processing cycle.
type SchedulerConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Interval    string `yaml:"interval"`              // e.g. "5m"
	CycleBudget string `yaml:"cycleBudget,omitempty"` // e.g. "2m"; zones left over are skipped
	MaxParallel int    `yaml:"maxParallel,omitempty"` // concurrent zones per cycle
}

// ForecastConfig configures the demand forecasting ensemble.
type ForecastConfig struct {
	HorizonMinutes int    `yaml:"horizonMinutes,omitempty"` // default 60
	WindowSize     int    `yaml:"windowSize,omitempty"`     // readings consumed per cycle, default 168
	MinSamples     int    `yaml:"minSamples,omitempty"`     // below this, statistical fallback only
	SeasonPeriod   int    `yaml:"seasonPeriod,omitempty"`   // samples per season, default 24
	ArtifactPath   string `yaml:"artifactPath,omitempty"`   // offline-trained sequence model weights
}

// AnomalyConfig configures the consumption anomaly detector.
type AnomalyConfig struct {
	RatioThreshold     float64 `yaml:"ratioThreshold,omitempty"`     // default 2.0
	MinBaselineSamples int     `yaml:"minBaselineSamples,omitempty"` // default 12
	ArtifactPath       string  `yaml:"artifactPath,omitempty"`       // reconstruction model weights
}

// RiskWeights are the fixed weights for the base-score factors. They should
// sum to 1; Normalize rescales them if they do not.
type RiskWeights struct {
	GridPriority  float64 `yaml:"gridPriority"`
	CriticalSites float64 `yaml:"criticalSites"`
	AirQuality    float64 `yaml:"airQuality"`
	Demand        float64 `yaml:"demand"`
	OpenAlerts    float64 `yaml:"openAlerts"`
}

// RiskConfig configures base scoring, propagation, and tier cutoffs.
type RiskConfig struct {
	Damping           float64     `yaml:"damping,omitempty"`           // α, default 0.3
	PropagationRounds int         `yaml:"propagationRounds,omitempty"` // default 1
	HighCutoff        float64     `yaml:"highCutoff,omitempty"`        // default 60
	MediumCutoff      float64     `yaml:"mediumCutoff,omitempty"`      // default 35
	MaxPriority       int         `yaml:"maxPriority,omitempty"`       // normalization range, default 5
	MaxCriticalSites  int         `yaml:"maxCriticalSites,omitempty"`  // default 3
	MaxOpenAlerts     int         `yaml:"maxOpenAlerts,omitempty"`     // default 5
	Weights           RiskWeights `yaml:"weights,omitempty"`
}

// IngestConfig configures the Kafka reading-feed consumer.
type IngestConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"groupId"`
}

// ArchiverConfig configures the background Postgres archiver.
type ArchiverConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Interval  string `yaml:"interval"` // e.g. "5m"
	DSN       string `yaml:"dsn"`
	BatchSize int    `yaml:"batchSize,omitempty"` // default 500
}

// SinkConfig defines an alert sink.
type SinkConfig struct {
	Type SinkType `yaml:"type"`
	URL  string   `yaml:"url,omitempty"`  // webhook
	Path string   `yaml:"path,omitempty"` // file
}
