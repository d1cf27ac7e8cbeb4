package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/mentorbridge/internal/clients/backend"
	"github.com/yungbote/mentorbridge/internal/data/repos"
	"github.com/yungbote/mentorbridge/internal/data/stores"
	"github.com/yungbote/mentorbridge/internal/domain/assessment"
	"github.com/yungbote/mentorbridge/internal/domain/expert"
	"github.com/yungbote/mentorbridge/internal/domain/session"
	"github.com/yungbote/mentorbridge/internal/observability"
	"github.com/yungbote/mentorbridge/internal/platform/apierr"
	"github.com/yungbote/mentorbridge/internal/platform/dbctx"
	"github.com/yungbote/mentorbridge/internal/platform/logger"
	"github.com/yungbote/mentorbridge/internal/wizard"
)

// Handoff is what the caller navigates away with after picking an expert.
type Handoff struct {
	Expert     expert.Match           `json:"expert"`
	Form       assessment.Form        `json:"form"`
	Submission *assessment.Submission `json:"submission"`
}

type WizardService interface {
	Catalog() *wizard.Catalog
	Start(ctx context.Context, sessionID string, resume bool) (*wizard.Wizard, error)
	Get(ctx context.Context, sessionID, id string) (*wizard.Wizard, error)
	Answer(ctx context.Context, sessionID, id string, a wizard.Answers) (*wizard.Wizard, error)
	Next(ctx context.Context, sessionID, id string) (*wizard.Wizard, error)
	Back(ctx context.Context, sessionID, id string) (*wizard.Wizard, error)
	SendOTP(ctx context.Context, sessionID, id string) (*wizard.Wizard, error)
	VerifyOTP(ctx context.Context, sessionID, id, code string) (*wizard.Wizard, error)
	// PickExpertise records the choice, advances to results and submits once.
	PickExpertise(ctx context.Context, sessionID, id, expertise string) (*wizard.Wizard, error)
	Retry(ctx context.Context, sessionID, id string) (*wizard.Wizard, error)
	Select(ctx context.Context, sessionID, id, expertID string) (*Handoff, error)
	Close(ctx context.Context, sessionID, id string) error
}

type WizardConfig struct {
	ResendCooldown time.Duration
	// CallTimeout is the backend client's per-call bound. BusyTTL is raised
	// to MinBusyTTL(CallTimeout) when set lower.
	CallTimeout time.Duration
	// BusyTTL bounds how long a crashed action can keep a wizard locked.
	BusyTTL time.Duration
	Now     func() time.Time
}

const (
	defaultBusyTTL = 30 * time.Second
	busyMargin     = 5 * time.Second
	// callsPerAction is the most sequential backend calls a guarded action
	// makes: verify then profile refresh, or session refresh then submit.
	callsPerAction = 2
)

// MinBusyTTL is the shortest busy lease that outlives a guarded action whose
// backend calls each take up to callTimeout.
func MinBusyTTL(callTimeout time.Duration) time.Duration {
	if callTimeout <= 0 {
		return 0
	}
	return callsPerAction*callTimeout + busyMargin
}

type wizardService struct {
	log      *logger.Logger
	machine  *wizard.Machine
	store    stores.WizardStore
	locker   stores.Locker
	drafts   repos.DraftRepo
	sessions SessionService
	backend  backend.Client
	cooldown time.Duration
	busyTTL  time.Duration
	timeout  time.Duration
	now      func() time.Time
}

// NewWizardService wires the step machine to its stores. drafts may be nil.
func NewWizardService(
	log *logger.Logger,
	cat *wizard.Catalog,
	store stores.WizardStore,
	locker stores.Locker,
	drafts repos.DraftRepo,
	sessions SessionService,
	be backend.Client,
	cfg WizardConfig,
) WizardService {
	if cfg.ResendCooldown <= 0 {
		cfg.ResendCooldown = wizard.DefaultResendCooldown
	}
	if cfg.BusyTTL <= 0 {
		cfg.BusyTTL = defaultBusyTTL
	}
	if floor := MinBusyTTL(cfg.CallTimeout); cfg.BusyTTL < floor {
		log.Warn("Busy lock TTL shorter than backend calls, raising it",
			"busy_ttl", cfg.BusyTTL, "call_timeout", cfg.CallTimeout, "min_busy_ttl", floor)
		cfg.BusyTTL = floor
	}
	actionTimeout := cfg.BusyTTL - busyMargin
	if actionTimeout <= 0 {
		actionTimeout = cfg.BusyTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &wizardService{
		log:      log.With("service", "WizardService"),
		machine:  wizard.NewMachine(cat, cfg.Now),
		store:    store,
		locker:   locker,
		drafts:   drafts,
		sessions: sessions,
		backend:  be,
		cooldown: cfg.ResendCooldown,
		busyTTL:  cfg.BusyTTL,
		timeout:  actionTimeout,
		now:      cfg.Now,
	}
}

func (s *wizardService) Catalog() *wizard.Catalog { return s.machine.Catalog() }

func (s *wizardService) Start(ctx context.Context, sessionID string, resume bool) (*wizard.Wizard, error) {
	if resume && s.drafts != nil {
		if w := s.restoreDraft(ctx, sessionID); w != nil {
			if err := s.store.Put(ctx, w); err != nil {
				return nil, apiError(err)
			}
			return w, nil
		}
	}
	w := wizard.New(uuid.NewString(), sessionID, s.now())
	if err := s.store.Put(ctx, w); err != nil {
		return nil, apiError(err)
	}
	s.log.Debug("Wizard started", "session_id", sessionID, "wizard_id", w.ID)
	return w, nil
}

func (s *wizardService) Get(ctx context.Context, sessionID, id string) (*wizard.Wizard, error) {
	w, err := s.load(ctx, sessionID, id)
	if err != nil {
		return nil, apiError(err)
	}
	return w, nil
}

func (s *wizardService) Answer(ctx context.Context, sessionID, id string, a wizard.Answers) (*wizard.Wizard, error) {
	return s.mutate(ctx, "answer", sessionID, id, func(ctx context.Context, w *wizard.Wizard) error {
		return wizard.Apply(w, a, s.machine.Catalog(), s.now())
	})
}

func (s *wizardService) Next(ctx context.Context, sessionID, id string) (*wizard.Wizard, error) {
	return s.mutate(ctx, "next", sessionID, id, func(ctx context.Context, w *wizard.Wizard) error {
		if w.Step == wizard.StepExpertise {
			// Same as picking the already-recorded expertise.
			if err := s.machine.Pick(ctx, w, w.Form.ExpertisePreference); err != nil {
				return err
			}
			return s.submit(ctx, w)
		}
		return s.machine.Next(ctx, w)
	})
}

func (s *wizardService) Back(ctx context.Context, sessionID, id string) (*wizard.Wizard, error) {
	return s.mutate(ctx, "back", sessionID, id, func(ctx context.Context, w *wizard.Wizard) error {
		return s.machine.Back(ctx, w)
	})
}

func (s *wizardService) SendOTP(ctx context.Context, sessionID, id string) (*wizard.Wizard, error) {
	return s.mutate(ctx, "send_otp", sessionID, id, func(ctx context.Context, w *wizard.Wizard) error {
		if err := s.machine.CanSendOTP(w); err != nil {
			return err
		}
		out, err := s.backend.SendEmailOTP(ctx, w.Form.Email)
		if err != nil {
			observability.Current().IncOTPSend("failed")
			s.log.Warn("Send OTP failed", "wizard_id", w.ID, "error", err)
			return err
		}
		observability.Current().IncOTPSend("sent")
		s.machine.OTPSent(w, out.OTP, s.cooldown)
		return nil
	})
}

func (s *wizardService) VerifyOTP(ctx context.Context, sessionID, id, code string) (*wizard.Wizard, error) {
	return s.mutate(ctx, "verify_otp", sessionID, id, func(ctx context.Context, w *wizard.Wizard) error {
		if err := s.machine.CanVerifyOTP(w, code); err != nil {
			return err
		}
		out, err := s.backend.VerifyEmailOTP(ctx, backend.VerifyOTPRequest{
			Email:          w.Form.Email,
			OTP:            code,
			Role:           string(session.KindStudent),
			AssessmentData: w.Form,
		})
		if err != nil {
			s.log.Warn("Verify OTP failed", "wizard_id", w.ID, "error", err)
			return err
		}
		s.machine.OTPVerified(w)
		if _, err := s.sessions.MarkStudent(ctx, sessionID, out.Token); err != nil {
			s.log.Warn("Mark session as student failed", "session_id", sessionID, "error", err)
		}
		// Verification is the last gate of the contact step.
		if err := s.machine.Next(ctx, w); err != nil && !errors.Is(err, wizard.ErrStepIncomplete) {
			return err
		}
		return nil
	})
}

func (s *wizardService) PickExpertise(ctx context.Context, sessionID, id, expertise string) (*wizard.Wizard, error) {
	return s.mutate(ctx, "pick", sessionID, id, func(ctx context.Context, w *wizard.Wizard) error {
		if err := s.machine.Pick(ctx, w, expertise); err != nil {
			return err
		}
		return s.submit(ctx, w)
	})
}

func (s *wizardService) Retry(ctx context.Context, sessionID, id string) (*wizard.Wizard, error) {
	return s.mutate(ctx, "retry", sessionID, id, func(ctx context.Context, w *wizard.Wizard) error {
		if w.Step != wizard.StepResults {
			return fmt.Errorf("%w: retry is only available on results", wizard.ErrNoTransition)
		}
		return s.submit(ctx, w)
	})
}

// submit posts the assessment. A failure is recorded on the wizard so the
// results panel can offer "Try Again"; the wizard stays on results.
func (s *wizardService) submit(ctx context.Context, w *wizard.Wizard) error {
	w.Experts = nil
	w.Failure = nil

	fail := func(err error) error {
		ae := apiError(err)
		code := "submit_failed"
		var typed *apierr.Error
		if errors.As(ae, &typed) && typed.Code != "" {
			code = typed.Code
		}
		w.Failure = &wizard.Failure{Code: code, Message: failureMessage(code)}
		observability.Current().IncSubmission(code)
		return ae
	}

	sub, err := wizard.BuildSubmission(w.Form, s.machine.Catalog())
	if err != nil {
		s.log.Error("Assessment payload rejected", "wizard_id", w.ID, "error", err)
		return fail(err)
	}
	if st, err := s.sessions.Ensure(ctx, w.SessionID); err == nil {
		ctx = s.sessions.Outgoing(ctx, st)
	}
	out, err := s.backend.SubmitAssessment(ctx, sub)
	if err != nil {
		s.log.Warn("Assessment submit failed", "wizard_id", w.ID, "error", err)
		return fail(err)
	}
	if !out.Success || len(out.Experts) == 0 {
		return fail(ErrNoExperts)
	}
	w.Experts = out.Experts
	observability.Current().IncSubmission("matched")
	s.log.Info("Assessment matched", "wizard_id", w.ID, "experts", len(out.Experts))
	return nil
}

func (s *wizardService) Select(ctx context.Context, sessionID, id, expertID string) (*Handoff, error) {
	release, err := s.locker.Acquire(ctx, lockKey(id), s.busyTTL)
	if err != nil {
		return nil, apiError(err)
	}
	defer release()

	w, err := s.load(ctx, sessionID, id)
	if err != nil {
		return nil, apiError(err)
	}
	if w.Step != wizard.StepResults {
		return nil, apiError(fmt.Errorf("%w: no results to select from", wizard.ErrNoTransition))
	}
	var picked *expert.Match
	for i := range w.Experts {
		if w.Experts[i].ID == expertID {
			picked = &w.Experts[i]
			break
		}
	}
	if picked == nil {
		return nil, apiError(fmt.Errorf("%w: expert %q is not among the results", wizard.ErrInvalidAnswer, expertID))
	}
	sub, err := wizard.BuildSubmission(w.Form, s.machine.Catalog())
	if err != nil {
		return nil, apiError(err)
	}
	s.discard(ctx, w)
	return &Handoff{Expert: *picked, Form: w.Form, Submission: sub}, nil
}

func (s *wizardService) Close(ctx context.Context, sessionID, id string) error {
	w, err := s.load(ctx, sessionID, id)
	if err != nil {
		return apiError(err)
	}
	s.discard(ctx, w)
	return nil
}

// mutate runs fn under the wizard's busy lock and persists the wizard even
// when fn fails, so recorded failures survive. fn's context ends before the
// lease does, so a second action can never overlap it.
func (s *wizardService) mutate(ctx context.Context, action, sessionID, id string, fn func(ctx context.Context, w *wizard.Wizard) error) (*wizard.Wizard, error) {
	release, err := s.locker.Acquire(ctx, lockKey(id), s.busyTTL)
	if err != nil {
		return nil, apiError(err)
	}
	defer release()

	w, err := s.load(ctx, sessionID, id)
	if err != nil {
		return nil, apiError(err)
	}
	before := w.Step
	actx, cancel := context.WithTimeout(ctx, s.timeout)
	fnErr := fn(actx, w)
	cancel()
	if err := s.store.Put(ctx, w); err != nil {
		return nil, apiError(err)
	}
	if w.Step != before {
		observability.Current().IncWizardTransition(action, before.String(), w.Step.String())
	}
	if fnErr == nil || w.Step != before {
		s.saveDraft(ctx, w)
	}
	if fnErr != nil {
		return w, apiError(fnErr)
	}
	return w, nil
}

func (s *wizardService) load(ctx context.Context, sessionID, id string) (*wizard.Wizard, error) {
	w, err := s.store.Get(ctx, id)
	if errors.Is(err, stores.ErrNotFound) {
		return nil, ErrWizardNotFound
	}
	if err != nil {
		return nil, err
	}
	if w.SessionID != sessionID {
		return nil, ErrWizardNotFound
	}
	return w, nil
}

func (s *wizardService) discard(ctx context.Context, w *wizard.Wizard) {
	if err := s.store.Delete(ctx, w.ID); err != nil {
		s.log.Warn("Delete wizard failed", "wizard_id", w.ID, "error", err)
	}
	if s.drafts != nil {
		if err := s.drafts.DeleteBySession(dbctx.Context{Ctx: ctx}, w.SessionID); err != nil {
			s.log.Warn("Delete draft failed", "session_id", w.SessionID, "error", err)
		}
	}
}

func (s *wizardService) saveDraft(ctx context.Context, w *wizard.Wizard) {
	if s.drafts == nil {
		return
	}
	// Drafts never carry OTP state or results.
	snap := *w
	snap.OTP = wizard.OTPGate{}
	snap.Experts = nil
	snap.Failure = nil
	raw, err := json.Marshal(snap)
	if err != nil {
		s.log.Warn("Encode draft failed", "wizard_id", w.ID, "error", err)
		return
	}
	err = s.drafts.Upsert(dbctx.Context{Ctx: ctx}, &assessment.Draft{
		SessionID: w.SessionID,
		WizardID:  w.ID,
		Step:      int(w.Step),
		Snapshot:  datatypes.JSON(raw),
	})
	if err != nil {
		s.log.Warn("Save draft failed", "wizard_id", w.ID, "error", err)
	}
}

// restoreDraft rebuilds a wizard from the session's draft. A restored wizard
// past the contact step is put back on contact: verification is not resumable.
func (s *wizardService) restoreDraft(ctx context.Context, sessionID string) *wizard.Wizard {
	d, err := s.drafts.GetBySession(dbctx.Context{Ctx: ctx}, sessionID)
	if err != nil {
		s.log.Warn("Load draft failed", "session_id", sessionID, "error", err)
		return nil
	}
	if d == nil {
		return nil
	}
	var w wizard.Wizard
	if err := json.Unmarshal(d.Snapshot, &w); err != nil || !w.Step.Valid() {
		s.log.Warn("Discarding unreadable draft", "session_id", sessionID, "error", err)
		return nil
	}
	w.SessionID = sessionID
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.Step > wizard.StepContact {
		w.Step = wizard.StepContact
	}
	w.UpdatedAt = s.now()
	return &w
}

func lockKey(wizardID string) string { return "wizard:" + wizardID }

func failureMessage(code string) string {
	switch code {
	case "no_experts":
		return "We couldn't find matching experts right now. Please try again."
	case "unmapped_career_journey":
		return "One of your answers could not be processed. Please go back and choose it again."
	case "unauthenticated":
		return "Your session expired. Please verify your email again."
	default:
		return "Something went wrong while finding your experts. Please try again."
	}
}
