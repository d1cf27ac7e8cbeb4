package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/looplab/fsm"
)

const (
	eventNext        = "next"
	eventSkipDetails = "skip_details"
	eventBack        = "back"
	eventBackSkip    = "back_skip"
	eventPick        = "pick"
)

// transitions is the full step table: current state x event -> next state.
// The guidance step has an outgoing edge but no incoming one.
var transitions = fsm.Events{
	{Name: eventNext, Src: []string{StepRole.String()}, Dst: StepDetails.String()},
	{Name: eventSkipDetails, Src: []string{StepRole.String()}, Dst: StepContact.String()},
	{Name: eventNext, Src: []string{StepDetails.String()}, Dst: StepContact.String()},
	{Name: eventNext, Src: []string{StepContact.String()}, Dst: StepJourney.String()},
	{Name: eventNext, Src: []string{StepJourney.String()}, Dst: StepLearning.String()},
	{Name: eventNext, Src: []string{StepLearning.String(), StepGuidance.String()}, Dst: StepExpertise.String()},
	{Name: eventNext, Src: []string{StepExpertise.String()}, Dst: StepResults.String()},
	{Name: eventPick, Src: []string{StepExpertise.String()}, Dst: StepResults.String()},

	{Name: eventBack, Src: []string{StepDetails.String()}, Dst: StepRole.String()},
	{Name: eventBack, Src: []string{StepContact.String()}, Dst: StepDetails.String()},
	{Name: eventBackSkip, Src: []string{StepContact.String()}, Dst: StepRole.String()},
	{Name: eventBack, Src: []string{StepJourney.String()}, Dst: StepContact.String()},
	{Name: eventBack, Src: []string{StepLearning.String()}, Dst: StepJourney.String()},
	{Name: eventBack, Src: []string{StepExpertise.String()}, Dst: StepLearning.String()},
	{Name: eventBack, Src: []string{StepResults.String()}, Dst: StepExpertise.String()},
}

// Machine drives a Wizard through the step table.
type Machine struct {
	catalog *Catalog
	now     func() time.Time
}

func NewMachine(cat *Catalog, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{catalog: cat, now: now}
}

func (m *Machine) Catalog() *Catalog { return m.catalog }

// Next advances when the current step is complete. Roles without a detail
// question jump straight to the contact step.
func (m *Machine) Next(ctx context.Context, w *Wizard) error {
	ev := eventNext
	if w.Step == StepRole && w.Form.Role.SkipsDetails() {
		ev = eventSkipDetails
	}
	return m.fire(ctx, w, ev)
}

// Back mirrors the forward skip: from contact, roles without details land on role.
func (m *Machine) Back(ctx context.Context, w *Wizard) error {
	ev := eventBack
	if w.Step == StepContact && w.Form.Role.SkipsDetails() {
		ev = eventBackSkip
	}
	if err := m.fire(ctx, w, ev); err != nil {
		return err
	}
	if w.Step != StepResults {
		w.Experts = nil
		w.Failure = nil
	}
	return nil
}

// Pick records the expertise preference and advances without a separate Next.
func (m *Machine) Pick(ctx context.Context, w *Wizard, expertise string) error {
	if w.Step != StepExpertise {
		return fmt.Errorf("%w: expertise is asked at step %s, wizard is at %s", ErrAnswerOutOfStep, StepExpertise, w.Step)
	}
	expertise = strings.TrimSpace(expertise)
	if !m.catalog.HasExpertise(expertise) {
		return fmt.Errorf("%w: unknown expertise %q", ErrInvalidAnswer, expertise)
	}
	prev := w.Form.ExpertisePreference
	w.Form.ExpertisePreference = expertise
	if err := m.fire(ctx, w, eventPick); err != nil {
		w.Form.ExpertisePreference = prev
		return err
	}
	return nil
}

func (m *Machine) fire(ctx context.Context, w *Wizard, event string) error {
	guard := func(_ context.Context, e *fsm.Event) {
		src, ok := stepFromState(e.Src)
		if !ok {
			e.Cancel(fmt.Errorf("unknown step %q", e.Src))
			return
		}
		if err := stepComplete(src, w, m.catalog); err != nil {
			e.Cancel(err)
		}
	}
	machine := fsm.NewFSM(w.Step.String(), transitions, fsm.Callbacks{
		"before_" + eventNext:        guard,
		"before_" + eventSkipDetails: guard,
		"before_" + eventPick:        guard,
	})

	if err := machine.Event(ctx, event); err != nil {
		var canceled fsm.CanceledError
		if errors.As(err, &canceled) && canceled.Err != nil {
			return canceled.Err
		}
		var invalid fsm.InvalidEventError
		if errors.As(err, &invalid) {
			return fmt.Errorf("%w: %s from %s", ErrNoTransition, event, w.Step)
		}
		return err
	}

	next, ok := stepFromState(machine.Current())
	if !ok {
		return fmt.Errorf("wizard landed in unknown state %q", machine.Current())
	}
	w.Step = next
	w.touch(m.now())
	return nil
}

// CanSendOTP validates the email and the resend countdown before any network call.
func (m *Machine) CanSendOTP(w *Wizard) error {
	if w.Step != StepContact {
		return fmt.Errorf("%w: otp is sent at step %s", ErrAnswerOutOfStep, StepContact)
	}
	if !validEmail(w.Form.Email) {
		return ErrInvalidEmail
	}
	// The countdown applies to every send, whichever address the last code went to.
	if now := m.now(); !w.OTP.CanSend(now) {
		return &ResendTooSoonError{SecondsLeft: w.OTP.SecondsLeft(now)}
	}
	return nil
}

// OTPSent starts (or restarts) the resend countdown.
func (m *Machine) OTPSent(w *Wizard, devCode string, cooldown time.Duration) {
	now := m.now()
	w.OTP = OTPGate{
		SentTo:   w.Form.Email,
		SentAt:   now,
		ResendAt: now.Add(cooldown),
		DevCode:  devCode,
	}
	w.touch(now)
}

// CanVerifyOTP validates the code shape before the verification call.
func (m *Machine) CanVerifyOTP(w *Wizard, code string) error {
	if w.Step != StepContact {
		return fmt.Errorf("%w: otp is verified at step %s", ErrAnswerOutOfStep, StepContact)
	}
	if !w.OTP.Sent() || w.OTP.SentTo != w.Form.Email {
		return fmt.Errorf("%w: send a code to %s first", ErrInvalidAnswer, w.Form.Email)
	}
	if !validOTP(strings.TrimSpace(code)) {
		return ErrInvalidOTP
	}
	return nil
}

func (m *Machine) OTPVerified(w *Wizard) {
	w.OTP.Verified = true
	w.OTP.DevCode = ""
	w.touch(m.now())
}
