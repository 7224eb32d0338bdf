package model

import "fmt"

// Strategy is one named stream of cleaned trades.
type Strategy struct {
	Name   string
	Trades []Trade
}

// Inputs is the canonical "inputs to the system" object: the strategy universe plus
// the benchmark every report is measured against.
type Inputs struct {
	Strategies []Strategy
	Benchmark  Benchmark
}

// Validate checks that the inputs can be analyzed at all.
func (in Inputs) Validate() error {
	if len(in.Strategies) == 0 {
		return fmt.Errorf("no strategies supplied")
	}
	if len(in.Benchmark) == 0 {
		return fmt.Errorf("benchmark series is empty")
	}
	return nil
}

// Names returns the strategy names in index order.
func (in Inputs) Names() []string {
	names := make([]string, len(in.Strategies))
	for i, s := range in.Strategies {
		names[i] = s.Name
	}
	return names
}
