package workflow

import (
	"context"
	"errors"
	"testing"
)

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StateDraft, false},
		{StateDeterminationComplete, false},
		{StateCollecting, false},
		{StateReadyToFile, false},
		{StateFiled, true},
		{StateExempt, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"valid state", StateDraft, true},
		{"valid terminal", StateExempt, true},
		{"invalid state", State("archived"), false},
		{"empty state", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func alwaysTrue(ctx context.Context) (bool, error)  { return true, nil }
func alwaysFalse(ctx context.Context) (bool, error) { return false, nil }

func openGuards() Guards {
	return Guards{HasIssuedLink: alwaysTrue, AllPartiesSubmitted: alwaysTrue}
}

func TestReportMachine_HappyPath(t *testing.T) {
	ctx := context.Background()
	m := NewReportMachine(StateDraft, openGuards())

	steps := []struct {
		trigger Trigger
		state   State
	}{
		{TriggerCompleteDetermination, StateDeterminationComplete},
		{TriggerIssueLinks, StateCollecting},
		{TriggerAllSubmitted, StateReadyToFile},
		{TriggerFile, StateFiled},
	}

	for _, step := range steps {
		if err := m.Fire(ctx, step.trigger); err != nil {
			t.Fatalf("Fire(%s) error = %v", step.trigger, err)
		}
		if m.State() != step.state {
			t.Fatalf("State() = %s, want %s", m.State(), step.state)
		}
	}
}

func TestReportMachine_ExemptBranch(t *testing.T) {
	ctx := context.Background()

	t.Run("from draft", func(t *testing.T) {
		m := NewReportMachine(StateDraft, openGuards())
		if err := m.Fire(ctx, TriggerDeclareExempt); err != nil {
			t.Fatalf("Fire(DECLARE_EXEMPT) error = %v", err)
		}
		if m.State() != StateExempt {
			t.Errorf("State() = %s, want %s", m.State(), StateExempt)
		}
	})

	t.Run("from determination_complete", func(t *testing.T) {
		m := NewReportMachine(StateDeterminationComplete, openGuards())
		if err := m.Fire(ctx, TriggerDeclareExempt); err != nil {
			t.Fatalf("Fire(DECLARE_EXEMPT) error = %v", err)
		}
		if m.State() != StateExempt {
			t.Errorf("State() = %s, want %s", m.State(), StateExempt)
		}
	})

	t.Run("not from collecting", func(t *testing.T) {
		m := NewReportMachine(StateCollecting, openGuards())
		err := m.Fire(ctx, TriggerDeclareExempt)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("Fire(DECLARE_EXEMPT) error = %v, want ErrInvalidTransition", err)
		}
	})
}

func TestReportMachine_NoBackwardOrSkippingEdges(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		from    State
		trigger Trigger
	}{
		{"draft cannot file", StateDraft, TriggerFile},
		{"draft cannot issue links", StateDraft, TriggerIssueLinks},
		{"collecting cannot file", StateCollecting, TriggerFile},
		{"ready_to_file cannot re-collect", StateReadyToFile, TriggerIssueLinks},
		{"ready_to_file cannot go exempt", StateReadyToFile, TriggerDeclareExempt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewReportMachine(tt.from, openGuards())
			err := m.Fire(ctx, tt.trigger)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("Fire(%s) from %s error = %v, want ErrInvalidTransition", tt.trigger, tt.from, err)
			}
			if m.State() != tt.from {
				t.Errorf("State() = %s, want unchanged %s", m.State(), tt.from)
			}
		})
	}
}

func TestReportMachine_TerminalStatesRejectEverything(t *testing.T) {
	ctx := context.Background()
	triggers := []Trigger{
		TriggerCompleteDetermination,
		TriggerDeclareExempt,
		TriggerIssueLinks,
		TriggerAllSubmitted,
		TriggerFile,
	}

	for _, terminal := range []State{StateFiled, StateExempt} {
		for _, trigger := range triggers {
			m := NewReportMachine(terminal, openGuards())
			if err := m.Fire(ctx, trigger); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("Fire(%s) from %s error = %v, want ErrInvalidTransition", trigger, terminal, err)
			}
		}
	}
}

func TestReportMachine_Guards(t *testing.T) {
	ctx := context.Background()

	t.Run("issue links blocked without active link", func(t *testing.T) {
		m := NewReportMachine(StateDeterminationComplete, Guards{
			HasIssuedLink:       alwaysFalse,
			AllPartiesSubmitted: alwaysTrue,
		})
		err := m.Fire(ctx, TriggerIssueLinks)
		if !errors.Is(err, ErrGuardFailed) {
			t.Errorf("Fire(ISSUE_LINKS) error = %v, want ErrGuardFailed", err)
		}
		if m.State() != StateDeterminationComplete {
			t.Errorf("State() = %s, state must not change on guard failure", m.State())
		}
	})

	t.Run("promotion blocked while parties outstanding", func(t *testing.T) {
		m := NewReportMachine(StateCollecting, Guards{
			HasIssuedLink:       alwaysTrue,
			AllPartiesSubmitted: alwaysFalse,
		})
		err := m.Fire(ctx, TriggerAllSubmitted)
		if !errors.Is(err, ErrGuardFailed) {
			t.Errorf("Fire(ALL_SUBMITTED) error = %v, want ErrGuardFailed", err)
		}
	})

	t.Run("guard error propagates", func(t *testing.T) {
		boom := errors.New("count failed")
		m := NewReportMachine(StateCollecting, Guards{
			AllPartiesSubmitted: func(ctx context.Context) (bool, error) { return false, boom },
		})
		err := m.Fire(ctx, TriggerAllSubmitted)
		if !errors.Is(err, boom) {
			t.Errorf("Fire(ALL_SUBMITTED) error = %v, want wrapped guard error", err)
		}
	})
}

func TestReportMachine_CanFireAndPeek(t *testing.T) {
	m := NewReportMachine(StateDraft, openGuards())

	if !m.CanFire(TriggerCompleteDetermination) {
		t.Error("CanFire(COMPLETE_DETERMINATION) = false, want true")
	}
	if m.CanFire(TriggerFile) {
		t.Error("CanFire(FILE) = true, want false")
	}

	if to, ok := m.Peek(TriggerDeclareExempt); !ok || to != StateExempt {
		t.Errorf("Peek(DECLARE_EXEMPT) = %s, %v; want %s, true", to, ok, StateExempt)
	}
	if _, ok := m.Peek(TriggerAllSubmitted); ok {
		t.Error("Peek(ALL_SUBMITTED) from draft = true, want false")
	}
}

func TestBuilder_PanicsOnTerminalSource(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic configuring an edge out of a terminal state")
		}
	}()

	NewBuilder().Permit(StateFiled, TriggerFile, StateDraft)
}
