package pellucid

// Config holds all configuration options for the Client.
type Config struct {
	// ProjectRoot is the directory holding the snapshot cache.
	// Default: .
	ProjectRoot string

	// SchemaDir is the path to the directory containing schema
	// documents (*.yaml). Default: ./schema
	SchemaDir string

	// DefaultModule qualifies bare object names in schema documents
	// that declare no module of their own. Default: default
	DefaultModule string

	// NoCache disables the snapshot cache. Planning then always
	// starts from an empty snapshot unless a baseline is supplied.
	NoCache bool

	// Logger is used for logging operations.
	// If nil, no logging is performed.
	Logger Logger
}

// Logger is the interface for logging operations.
// It's compatible with the standard library's log.Logger.
type Logger interface {
	// Printf writes a formatted message to the log.
	Printf(format string, v ...any)
}

// Option is a functional option for configuring the Client.
type Option func(*Config)

// WithProjectRoot sets the directory holding the snapshot cache.
// Default: .
func WithProjectRoot(dir string) Option {
	return func(c *Config) {
		c.ProjectRoot = dir
	}
}

// WithSchemaDir sets the path to the schema documents directory.
// Default: ./schema
func WithSchemaDir(dir string) Option {
	return func(c *Config) {
		c.SchemaDir = dir
	}
}

// WithDefaultModule sets the module used to qualify bare object names.
// Default: default
func WithDefaultModule(module string) Option {
	return func(c *Config) {
		c.DefaultModule = module
	}
}

// WithoutCache disables the snapshot cache.
// Use for one-shot planning against an explicit baseline.
func WithoutCache() Option {
	return func(c *Config) {
		c.NoCache = true
	}
}

// WithLogger sets the logger for the client.
// If not set, no logging is performed.
func WithLogger(l Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// PlanConfig holds options for plan operations.
type PlanConfig struct {
	// BanCreations lists object names that must not be created.
	// A banned creation forces the differ to match the object to an
	// existing one or drop it from the plan.
	BanCreations []string

	// BanDeletions lists object names that must not be deleted.
	BanDeletions []string

	// BanAlters lists old/new name pairs that must not be paired as
	// an alteration, forcing a drop-and-create instead.
	BanAlters [][2]string
}

// PlanOption is a functional option for plan operations.
type PlanOption func(*PlanConfig)

// BanCreation forbids the plan from creating the named object.
func BanCreation(name string) PlanOption {
	return func(c *PlanConfig) {
		c.BanCreations = append(c.BanCreations, name)
	}
}

// BanDeletion forbids the plan from deleting the named object.
func BanDeletion(name string) PlanOption {
	return func(c *PlanConfig) {
		c.BanDeletions = append(c.BanDeletions, name)
	}
}

// BanAlter forbids pairing oldName with newName as an alteration.
func BanAlter(oldName, newName string) PlanOption {
	return func(c *PlanConfig) {
		c.BanAlters = append(c.BanAlters, [2]string{oldName, newName})
	}
}

// applyPlanOptions applies all plan options to a config.
func applyPlanOptions(opts []PlanOption) *PlanConfig {
	cfg := &PlanConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
