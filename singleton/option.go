package singleton

import (
	"time"

	"github.com/creasty/defaults"
	"github.com/hnhuaxi/refsingleton"
	"github.com/imdario/mergo"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Option struct {
	// Name identifies the singleton in logs and stats. Defaults to the snake
	// cased type name of T.
	Name string
	// WaitTimeout bounds how long GetOrInit and Get wait for the lock while
	// another caller runs the factory. Zero waits for as long as ctx allows.
	WaitTimeout time.Duration `default:"0s"`
	// LeakCheck logs a warning for every Ref that is garbage collected
	// without an explicit Release. The leaked ownership is never given back,
	// so the instance is not destroyed behind a caller still using it.
	LeakCheck bool `default:"false"`
	Logger    *zap.Logger
}

type OptionFunc func(opt *Option)

func OptName(name string) OptionFunc {
	return func(opt *Option) {
		opt.Name = name
	}
}

func OptWaitTimeout(dt time.Duration) OptionFunc {
	return func(opt *Option) {
		opt.WaitTimeout = dt
	}
}

func OptLeakCheck(enabled bool) OptionFunc {
	return func(opt *Option) {
		opt.LeakCheck = enabled
	}
}

func OptLogger(log *zap.Logger) OptionFunc {
	return func(opt *Option) {
		opt.Logger = log
	}
}

// OptMerge overrides every non zero field of the current option with src.
// Zero values in src are skipped, so it can not turn LeakCheck off or clear a
// WaitTimeout; use OptLeakCheck and OptWaitTimeout for that.
func OptMerge(src Option) OptionFunc {
	return func(opt *Option) {
		log := src.Logger
		src.Logger = nil
		if err := mergo.Merge(opt, src, mergo.WithOverride); err != nil {
			panic(errors.Wrap(err, "singleton: merge option"))
		}
		if log != nil {
			opt.Logger = log
		}
	}
}

// NewOption applies the struct defaults and then opts in order.
func NewOption(opts ...OptionFunc) Option {
	var opt Option
	defaults.Set(&opt)

	for _, op := range opts {
		op(&opt)
	}

	if opt.Logger == nil {
		opt.Logger = refsingleton.Logger
	}

	return opt
}
