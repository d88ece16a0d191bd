package cfg

type Cfg struct {
	// Storage configuration
	DBPath    string
	TableName string

	// Upstream feed configuration
	FeedURL      string
	FetchTimeout int
	FetchRate    float64
	UserAgent    string

	// Application configuration
	Port           string
	APIAccessKey   string
	UpdateInterval int
	WorkerCount    int

	// One-shot operator modes
	Repair    bool
	InitBuild bool

	// Application metadata
	Debug   bool
	Version string
}
