package adaptive

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/adaptive/internal/domain/events"
	"github.com/GriffinCanCode/adaptive/internal/domain/execution"
	"github.com/GriffinCanCode/adaptive/internal/domain/strategy"
	"github.com/GriffinCanCode/adaptive/internal/infrastructure/tracing"
)

// optionsValidate is the validator instance for executor configuration
var optionsValidate = validator.New()

// Options configures the core of an adaptive executor. Numeric fields have
// no implicit defaults: start from DefaultOptions.
type Options struct {
	Name string       `validate:"required,max=128"`
	Mode LearningMode `validate:"gte=0,lte=3"`

	// MaxStrategies bounds the learned strategies; the baseline is extra
	MaxStrategies int `validate:"gte=1"`
	// MinObservations is the sample count a learner needs before proposing,
	// and a strategy needs before its observed score replaces its prior
	MinObservations int `validate:"gte=1"`
	// ValidationWindow is the trial budget of a new strategy in VALIDATE mode
	ValidationWindow int `validate:"gte=1"`
	// ImprovementMargin is the relative gain a proposal needs over the
	// strategy currently serving its context
	ImprovementMargin float64 `validate:"gte=0,lt=1"`

	CircuitBreakerThreshold float64       `validate:"gt=0,lte=1"`
	BreakerWindow           int           `validate:"gte=1"`
	BreakerMinRequests      int           `validate:"gte=1,ltefield=BreakerWindow"`
	BreakerCooldown         time.Duration `validate:"gt=0"`

	// LearnInterval rate limits learning passes; 0 runs one after every call
	LearnInterval time.Duration `validate:"gte=0"`
	// PersistTimeout bounds each persistence call; 0 means no bound
	PersistTimeout time.Duration `validate:"gte=0"`

	// OwnerID scopes persisted strategies; defaults to Name
	OwnerID string

	KeyExtractor execution.KeyExtractor
	Classifier   execution.Classifier
	Persistence  strategy.Persistence
	Sink         events.Sink
	Logger       *zap.Logger
	Tracer       *tracing.Tracer

	// Clock drives breaker cooldowns and domain timers such as cache expiry;
	// defaults to time.Now
	Clock func() time.Time
}

// DefaultOptions returns options for an executor called name
func DefaultOptions(name string) Options {
	return Options{
		Name:                    name,
		Mode:                    ModeValidate,
		MaxStrategies:           10,
		MinObservations:         10,
		ValidationWindow:        20,
		ImprovementMargin:       0.05,
		CircuitBreakerThreshold: 0.5,
		BreakerWindow:           20,
		BreakerMinRequests:      5,
		BreakerCooldown:         30 * time.Second,
		PersistTimeout:          5 * time.Second,
	}
}

// Validate checks the options and returns a *execution.ConfigurationError
func (o Options) Validate() error {
	return ValidateConfig(o)
}

// ValidateConfig checks the validate tags of cfg, which may embed Options,
// and reports every violation as a *execution.ConfigurationError
func ValidateConfig(cfg any) error {
	err := optionsValidate.Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return execution.NewConfigurationError("", err.Error())
	}

	errs := make([]*execution.ConfigurationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		reason := fmt.Sprintf("must satisfy %s", fe.Tag())
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		errs = append(errs, execution.NewConfigurationError(fe.Field(), fmt.Sprintf("%s, got %v", reason, fe.Value())))
	}
	return execution.ConfigurationErrors(errs)
}

// withDefaults fills the collaborators left nil
func (o Options) withDefaults() Options {
	if o.OwnerID == "" {
		o.OwnerID = o.Name
	}
	if o.KeyExtractor == nil {
		o.KeyExtractor = execution.EnvironmentKey
	}
	if o.Classifier == nil {
		o.Classifier = execution.DefaultClassifier
	}
	if o.Persistence == nil {
		o.Persistence = strategy.NopPersistence{}
	}
	if o.Sink == nil {
		o.Sink = events.Discard
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Tracer == nil {
		o.Tracer = tracing.New("adaptive", o.Logger)
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}
