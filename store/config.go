package store

const (
	defaultRelationshipTable = "groundwork_relationships"
	defaultUniqueTable       = "groundwork_unique_constraints"
	maxShards                = 256
)

// Config holds configuration for the Store.
type Config struct {
	// RelationshipTable records which fixture was created under which parent.
	// Default: "groundwork_relationships"
	RelationshipTable string

	// UniqueTable holds unique constraint records.
	// Default: "groundwork_unique_constraints"
	UniqueTable string

	// NumShards spreads relationship records of one parent over several
	// partitions. Each shard is queried in parallel during teardown.
	// Default: 1, max: 256.
	NumShards int
}

// DefaultConfig returns the configuration used by most test suites.
func DefaultConfig() Config {
	return Config{
		RelationshipTable: defaultRelationshipTable,
		UniqueTable:       defaultUniqueTable,
		NumShards:         1,
	}
}

// validate fills in defaults and clamps NumShards.
func (c *Config) validate() {
	if c.RelationshipTable == "" {
		c.RelationshipTable = defaultRelationshipTable
	}
	if c.UniqueTable == "" {
		c.UniqueTable = defaultUniqueTable
	}
	c.NumShards = min(max(c.NumShards, 1), maxShards)
}
