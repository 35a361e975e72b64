package engine

// Config holds every limit of a run. Zero fields take the defaults of
// DefaultConfig.
type Config struct {
	// MinCrossrefs is how many entries must name a parent in their
	// crossref field before the parent is cited on its own.
	MinCrossrefs int

	HashSize   int // hash table slots; fixed for the run
	PoolSize   int // string pool bytes
	MaxStrings int // string pool entries
	BufSize    int // initial size of each scratch buffer
	MaxBufSize int // hard limit of each scratch buffer
	StackSize  int // literal stack depth

	MaxAuxDepth      int // \@input nesting
	MaxCrossrefDepth int // crossref chain length
	MaxPrintLine     int // output column limit

	EntryStrMax  int // initial entry.max$
	GlobalStrMax int // initial global.max$

	// MaxErrors makes the run fatal once this many errors have been
	// recorded. Zero means no limit.
	MaxErrors int
}

// DefaultConfig returns the classic limits.
func DefaultConfig() Config {
	return Config{
		MinCrossrefs:     2,
		HashSize:         35307,
		PoolSize:         65000000,
		MaxStrings:       1000000,
		BufSize:          20000,
		MaxBufSize:       1 << 24,
		StackSize:        1000,
		MaxAuxDepth:      20,
		MaxCrossrefDepth: 8,
		MaxPrintLine:     79,
		EntryStrMax:      250,
		GlobalStrMax:     20000,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	fill := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&c.MinCrossrefs, d.MinCrossrefs)
	fill(&c.HashSize, d.HashSize)
	fill(&c.PoolSize, d.PoolSize)
	fill(&c.MaxStrings, d.MaxStrings)
	fill(&c.BufSize, d.BufSize)
	fill(&c.MaxBufSize, d.MaxBufSize)
	fill(&c.StackSize, d.StackSize)
	fill(&c.MaxAuxDepth, d.MaxAuxDepth)
	fill(&c.MaxCrossrefDepth, d.MaxCrossrefDepth)
	fill(&c.MaxPrintLine, d.MaxPrintLine)
	fill(&c.EntryStrMax, d.EntryStrMax)
	fill(&c.GlobalStrMax, d.GlobalStrMax)
	if c.BufSize > c.MaxBufSize {
		c.BufSize = c.MaxBufSize
	}
	return c
}
