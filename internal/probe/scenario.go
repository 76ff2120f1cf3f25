package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"clinic-deploy/internal/infra"
)

// cleanupTimeout はクリーンアップ処理1件あたりのタイムアウト。
const cleanupTimeout = 30 * time.Second

// Env はプローブの実行環境。
type Env struct {
	BaseURL string
	Timeout time.Duration
	Creds   Credentials
}

// Scenario は独立して実行できる1つのプローブ。
type Scenario struct {
	Name        string
	Description string
	Run         func(ctx context.Context, c *Case) error
}

// registry は実行順に並んだシナリオ一覧。
var registry = []Scenario{
	authLoginScenario,
	authProfileScenario,
	patientsListScenario,
	patientsCreateScenario,
	patientsGetScenario,
	patientsUpdateScenario,
	patientsArchiveScenario,
	appointmentsCreateScenario,
	painPointScenario,
	lgpdExportScenario,
}

// Scenarios は登録されている全シナリオを登録順に返す。
func Scenarios() []Scenario {
	out := make([]Scenario, len(registry))
	copy(out, registry)
	return out
}

// Lookup は名前でシナリオを探す。
func Lookup(name string) (Scenario, bool) {
	for _, s := range registry {
		if s.Name == name {
			return s, true
		}
	}
	return Scenario{}, false
}

// Case は1回のシナリオ実行の状態を保持する。シナリオ間で共有しない。
type Case struct {
	Env      Env
	Client   *Client
	cleanups []cleanup
}

type cleanup struct {
	name string
	fn   func(ctx context.Context) error
}

// NewClient は同じ環境向けに、Cookieを共有しない別のクライアントを生成する。
func (c *Case) NewClient() (*Client, error) {
	return NewClient(c.Env.BaseURL, c.Env.Timeout, c.Env.Creds)
}

// Defer はシナリオ終了後に必ず実行するクリーンアップ処理を登録する。
// 登録と逆の順序で実行される。
func (c *Case) Defer(name string, fn func(ctx context.Context) error) {
	c.cleanups = append(c.cleanups, cleanup{name: name, fn: fn})
}

// runCleanups は登録されたクリーンアップを逆順に全て実行し、失敗をまとめて返す。
func (c *Case) runCleanups(ctx context.Context) error {
	var errs []error
	for i := len(c.cleanups) - 1; i >= 0; i-- {
		cl := c.cleanups[i]
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		err := cl.fn(cctx)
		cancel()
		if err != nil {
			slog.WarnContext(ctx, "cleanup failed",
				"operation", "probe_cleanup",
				"cleanup", cl.name,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("cleanup %s: %w", cl.name, err))
		}
	}
	return errors.Join(errs...)
}

// Result は1シナリオの実行結果。
type Result struct {
	Name       string
	Err        error
	CleanupErr error
	Duration   time.Duration
}

// Passed はシナリオ本体とクリーンアップの両方が成功したかを返す。
func (r Result) Passed() bool {
	return r.Err == nil && r.CleanupErr == nil
}

// Report はプローブ実行全体の結果。
type Report struct {
	Results []Result
}

// Passed は全シナリオが成功したかを返す。
func (r *Report) Passed() bool {
	for _, res := range r.Results {
		if !res.Passed() {
			return false
		}
	}
	return true
}

// Failed は失敗したシナリオの結果を返す。
func (r *Report) Failed() []Result {
	var failed []Result
	for _, res := range r.Results {
		if !res.Passed() {
			failed = append(failed, res)
		}
	}
	return failed
}

// Runner はシナリオを順番に実行する。
type Runner struct {
	env Env
}

// NewRunner は新しいRunnerを生成する。
func NewRunner(env Env) *Runner {
	return &Runner{env: env}
}

// Run は指定された名前のシナリオを順番に実行する。名前を省略した場合は全シナリオを実行する。
// 未登録の名前は失敗した結果として記録する。
func (r *Runner) Run(ctx context.Context, names ...string) *Report {
	var targets []Scenario
	report := &Report{}
	if len(names) == 0 {
		targets = Scenarios()
	}
	for _, name := range names {
		s, ok := Lookup(name)
		if !ok {
			report.Results = append(report.Results, Result{
				Name: name,
				Err:  fmt.Errorf("%w: %s", ErrUnknownScenario, name),
			})
			continue
		}
		targets = append(targets, s)
	}

	for _, s := range targets {
		if ctx.Err() != nil {
			report.Results = append(report.Results, Result{Name: s.Name, Err: ctx.Err()})
			continue
		}
		report.Results = append(report.Results, r.runScenario(ctx, s))
	}
	return report
}

func (r *Runner) runScenario(ctx context.Context, s Scenario) Result {
	ctx, span := infra.Tracer().Start(ctx, "probe_scenario")
	defer span.End()
	span.SetAttributes(attribute.String("probe.scenario", s.Name))

	start := time.Now()
	result := Result{Name: s.Name}

	client, err := NewClient(r.env.BaseURL, r.env.Timeout, r.env.Creds)
	if err != nil {
		result.Err = err
		result.Duration = time.Since(start)
		return result
	}
	c := &Case{Env: r.env, Client: client}

	result.Err = runBody(ctx, s, c)
	result.CleanupErr = c.runCleanups(ctx)
	result.Duration = time.Since(start)

	if !result.Passed() {
		err := errors.Join(result.Err, result.CleanupErr)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.ErrorContext(ctx, "probe scenario failed",
			"operation", "probe_run",
			"scenario", s.Name,
			"assertion", IsAssertion(result.Err),
			"duration_ms", result.Duration.Milliseconds(),
			"error", err,
		)
		return result
	}

	slog.InfoContext(ctx, "probe scenario passed",
		"operation", "probe_run",
		"scenario", s.Name,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result
}

// runBody はシナリオ本体を実行する。panicはエラーに変換し、後続のクリーンアップを止めない。
func runBody(ctx context.Context, s Scenario, c *Case) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrScenarioPanicked, r)
		}
	}()
	return s.Run(ctx, c)
}
