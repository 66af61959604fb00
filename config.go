package main

import "time"

// Config holds search tuning parameters.
type Config struct {
	// TimeBudget is how long the search may run once it has a usable combo.
	// The search never gives up on an answer it already found because of it.
	TimeBudget time.Duration
	// MaxFillers is the most filler slots a complete combo may contain.
	MaxFillers int
	// MinFillers is the number of owned fillers below which abundant base
	// modifiers are used as fillers instead.
	MinFillers int
	// FallbackMinOwned is the count a base modifier must exceed to serve as
	// a fallback filler.
	FallbackMinOwned int
}

func DefaultConfig() Config {
	return Config{
		TimeBudget:       100 * time.Millisecond,
		MaxFillers:       2,
		MinFillers:       2,
		FallbackMinOwned: 3,
	}
}
