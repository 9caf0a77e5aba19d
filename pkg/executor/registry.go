package executor

import (
	"github.com/rs/zerolog"

	"github.com/vantage-ai/vantage/pkg/agent"
	"github.com/vantage-ai/vantage/pkg/datasource"
	"github.com/vantage-ai/vantage/pkg/plan"
	"github.com/vantage-ai/vantage/pkg/retry"
	"github.com/vantage-ai/vantage/pkg/store"
)

// Config wires the default registry with one executor per action kind
type Config struct {
	Gateway agent.Gateway
	Source  datasource.DataSource
	Store   store.Store
	Retry   *retry.Policy
	Logger  zerolog.Logger
}

// NewDefaultRegistry builds a registry covering every action kind
func NewDefaultRegistry(cfg Config) (*Registry, error) {
	if cfg.Retry == nil {
		cfg.Retry = retry.Default(cfg.Logger)
	}

	widgetCfg := CreateWidgetConfig{
		Gateway: cfg.Gateway,
		Source:  cfg.Source,
		Store:   cfg.Store,
		Retry:   cfg.Retry,
		Logger:  cfg.Logger,
	}

	create, err := NewCreateWidget(widgetCfg)
	if err != nil {
		return nil, err
	}
	modify, err := NewModifyWidget(widgetCfg)
	if err != nil {
		return nil, err
	}
	dashboard, err := NewDesignDashboard(DashboardConfig{
		Gateway: cfg.Gateway,
		Store:   cfg.Store,
		Retry:   cfg.Retry,
		Logger:  cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	r := NewRegistry()
	r.Register(plan.KindCreateWidget, create)
	r.Register(plan.KindModifyWidget, modify)
	r.Register(plan.KindAnswerQuestion, NewAnswerQuestion(AnswerConfig{
		Gateway: cfg.Gateway,
		Store:   cfg.Store,
		Retry:   cfg.Retry,
		Logger:  cfg.Logger,
	}))
	r.Register(plan.KindClarifyQuestion, NewAnswerQuestion(AnswerConfig{
		Gateway: cfg.Gateway,
		Store:   cfg.Store,
		Retry:   cfg.Retry,
		Clarify: true,
		Logger:  cfg.Logger,
	}))
	r.Register(plan.KindDesignDashboard, dashboard)
	return r, nil
}
