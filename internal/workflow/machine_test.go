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
		{StateUnread, false},
		{StatePendingFirstApproval, false},
		{StateRejected, false},
		{StateApproved, true},
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
		{"valid state", StateUnread, true},
		{"valid state", StateApproved, true},
		{"invalid state", State("INVALID"), false},
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

func TestBuilder_ConfigurePanicsOnInvalidState(t *testing.T) {
	builder := NewBuilder()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Configure() should panic on invalid state")
		}
	}()

	builder.Configure(State("INVALID"))
}

func TestStateMachine_ApprovalEdges(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		from    State
		trigger Trigger
		want    State
		wantErr error
	}{
		{"first approval", StateUnread, TriggerApprove, StatePendingFirstApproval, nil},
		{"second approval", StatePendingFirstApproval, TriggerApprove, StateApproved, nil},
		{"reject unread", StateUnread, TriggerReject, StateRejected, nil},
		{"reject pending", StatePendingFirstApproval, TriggerReject, StateRejected, nil},
		{"resubmit rejected", StateRejected, TriggerResubmit, StateUnread, nil},
		{"approve terminal", StateApproved, TriggerApprove, StateApproved, ErrInvalidTransition},
		{"reject terminal", StateApproved, TriggerReject, StateApproved, ErrInvalidTransition},
		{"resubmit unread", StateUnread, TriggerResubmit, StateUnread, ErrInvalidTransition},
		{"resubmit pending", StatePendingFirstApproval, TriggerResubmit, StatePendingFirstApproval, ErrInvalidTransition},
		{"approve rejected", StateRejected, TriggerApprove, StateRejected, ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := newMachine(tt.from)
			err := machine.Fire(ctx, tt.trigger)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Fire() error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("Fire() unexpected error: %v", err)
			}
			if got := machine.State(); got != tt.want {
				t.Errorf("State() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStateMachine_CanFire(t *testing.T) {
	machine := newMachine(StateUnread)
	if !machine.CanFire(TriggerApprove) {
		t.Error("CanFire(APPROVE) from unread should be true")
	}
	if machine.CanFire(TriggerResubmit) {
		t.Error("CanFire(RESUBMIT) from unread should be false")
	}

	machine = newMachine(StateApproved)
	if len(machine.PermittedTriggers()) != 0 {
		t.Error("approved state should permit no triggers")
	}
}

func TestStateMachine_GuardedTransition(t *testing.T) {
	ctx := context.Background()

	allow := false
	builder := NewBuilder()
	builder.Configure(StatePendingFirstApproval).
		PermitIf(TriggerApprove, StateApproved, func(context.Context) bool { return allow })
	machine := builder.Build(StatePendingFirstApproval)

	if err := machine.Fire(ctx, TriggerApprove); !errors.Is(err, ErrGuardFailed) {
		t.Fatalf("Fire() error = %v, want %v", err, ErrGuardFailed)
	}
	if machine.State() != StatePendingFirstApproval {
		t.Error("failed guard must not change state")
	}

	allow = true
	if err := machine.Fire(ctx, TriggerApprove); err != nil {
		t.Fatalf("Fire() unexpected error: %v", err)
	}
	if machine.State() != StateApproved {
		t.Errorf("State() = %v, want %v", machine.State(), StateApproved)
	}
}
