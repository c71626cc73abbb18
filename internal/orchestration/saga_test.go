package orchestration

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildChain returns n stages that record execution order, with the
// listed stage numbers (1-based) failing.
func buildChain(n int, fail map[int]bool, trace *[]string) []Stage {
	stages := make([]Stage, 0, n)
	for i := 1; i <= n; i++ {
		stages = append(stages, Stage{
			Name: fmt.Sprintf("stage-%d", i),
			Action: func(context.Context) error {
				*trace = append(*trace, fmt.Sprintf("run-%d", i))
				if fail[i] {
					return errors.New("stage blew up")
				}
				return nil
			},
			Teardown: func(context.Context) {
				*trace = append(*trace, fmt.Sprintf("down-%d", i))
			},
		})
	}
	return stages
}

func TestSagaHappyPathUnwindsInReverse(t *testing.T) {
	t.Parallel()
	var trace []string
	s := &Saga{Stages: buildChain(3, nil, &trace)}

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, []string{"run-1", "run-2", "run-3", "down-3", "down-2", "down-1"}, trace)
}

func TestSagaFailureShortCircuitsAndUnwindsSucceededStages(t *testing.T) {
	t.Parallel()
	var trace []string
	s := &Saga{Stages: buildChain(8, map[int]bool{5: true}, &trace)}

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage-5")
	// Stages 1-4 ran and tear down in exact reverse order; the failed
	// stage 5 has no teardown; 6-8 never execute at all.
	assert.Equal(t, []string{
		"run-1", "run-2", "run-3", "run-4", "run-5",
		"down-4", "down-3", "down-2", "down-1",
	}, trace)
}

func TestSagaNilTeardownSkipped(t *testing.T) {
	t.Parallel()
	var trace []string
	stages := buildChain(2, nil, &trace)
	stages[0].Teardown = nil
	s := &Saga{Stages: stages}

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, []string{"run-1", "run-2", "down-2"}, trace)
}

func TestSagaFirstInterruptUnwinds(t *testing.T) {
	t.Parallel()
	var trace []string
	interrupts := make(chan struct{}, 2)
	stages := buildChain(3, nil, &trace)
	// Interrupt lands while stage 2 runs; observed before stage 3.
	orig := stages[1].Action
	stages[1].Action = func(ctx context.Context) error {
		interrupts <- struct{}{}
		return orig(ctx)
	}
	s := &Saga{Stages: stages, Interrupts: interrupts}

	err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.Equal(t, []string{"run-1", "run-2", "down-2", "down-1"}, trace)
}

func TestSagaSecondInterruptAbandonsUnwind(t *testing.T) {
	t.Parallel()
	var trace []string
	interrupts := make(chan struct{}, 2)
	stages := buildChain(3, nil, &trace)
	orig := stages[1].Action
	stages[1].Action = func(ctx context.Context) error {
		interrupts <- struct{}{}
		interrupts <- struct{}{}
		return orig(ctx)
	}
	s := &Saga{Stages: stages, Interrupts: interrupts}

	err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrAbandoned)
	// No teardown ran: cleanup is left to the prefix sweeper.
	assert.Equal(t, []string{"run-1", "run-2"}, trace)
}
