/*
Package strategy holds the learning state of an adaptive executor.

# Overview

A Strategy is a named bundle of Parameters, a context Pattern and the
Metrics observed while the strategy was selected. Every executor owns one
Store; the Store always contains exactly one baseline (Always pattern) that
can be neither evicted nor removed.

# Metrics

Counters are atomics and only grow. Executions are derived from successes and
failures, so successes+failures == executions holds for every snapshot.

# Patterns

	Always()                    matches every context key
	ExactKey("env", "prod")     matches keys with the segment "env:prod"
	Contains("prod")            matches any key whose text contains "prod"

Learned strategies use ExactKey, so "env:production" is never matched by a
strategy learned for "env:non-production".

# Eviction

maxStrategies bounds the learned strategies. Inserting one too many evicts the
lowest-scoring learned strategy; ties go to the oldest.
*/
package strategy
