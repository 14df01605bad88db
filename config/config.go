package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/polyagent/internal/simulation"
)

// ErrInvalid se devuelve cuando algún valor está fuera de rango.
var ErrInvalid = errors.New("invalid config")

// Config es la configuración completa del agente.
type Config struct {
	Agent      AgentConfig      `yaml:"agent"`
	Simulation SimulationConfig `yaml:"simulation"`
	API        APIConfig        `yaml:"api"`
	Storage    StorageConfig    `yaml:"storage"`
	Status     StatusConfig     `yaml:"status"`
	Log        LogConfig        `yaml:"log"`
	Judge      JudgeConfig      `yaml:"judge"`
}

// AgentConfig controla el sizing, el riesgo y el ritmo de los ciclos.
type AgentConfig struct {
	InitialBalance    decimal.Decimal `yaml:"initial_balance"`
	MaxPositionPct    decimal.Decimal `yaml:"max_position_pct"`
	KillThreshold     decimal.Decimal `yaml:"kill_threshold"`
	KellyFraction     decimal.Decimal `yaml:"kelly_fraction"`
	MinConfidence     decimal.Decimal `yaml:"min_confidence"`
	BalanceReservePct decimal.Decimal `yaml:"balance_reserve_pct"`
	MaxEdge           decimal.Decimal `yaml:"max_edge"`
	MaxOpenPositions  int             `yaml:"max_open_positions"`
	MaxSpread         decimal.Decimal `yaml:"max_spread"`
	ScanIntervalSecs  int             `yaml:"scan_interval_secs"`
	PriceCheckSecs    int             `yaml:"price_check_secs"`
	ExitTPPct         decimal.Decimal `yaml:"exit_tp_pct"` // trades LEGACY; 0 = desactivado
	ExitSLPct         decimal.Decimal `yaml:"exit_sl_pct"`
	MarketsPerCycle   int             `yaml:"markets_per_cycle"`
	StopFile          string          `yaml:"stop_file"`
}

// SimulationConfig refleja simulation.Config. Los toggles son punteros para
// distinguir "no configurado" de false.
type SimulationConfig struct {
	Fees     *bool `yaml:"fees"`
	Slippage *bool `yaml:"slippage"`
	Fills    *bool `yaml:"fills"`
	Impact   *bool `yaml:"impact"`

	GasFeeMin      decimal.NullDecimal `yaml:"gas_fee_min"`
	GasFeeMax      decimal.NullDecimal `yaml:"gas_fee_max"`
	PlatformFeePct decimal.NullDecimal `yaml:"platform_fee_pct"`
	MakerFeePct    decimal.NullDecimal `yaml:"maker_fee_pct"`
	TakerFeePct    decimal.NullDecimal `yaml:"taker_fee_pct"`

	BaseSlippagePct      decimal.NullDecimal `yaml:"base_slippage_pct"`
	SizePenaltyPct       decimal.NullDecimal `yaml:"size_penalty_pct"`
	SizePenaltyThreshold decimal.NullDecimal `yaml:"size_penalty_threshold"`

	RejectProbability      decimal.NullDecimal `yaml:"reject_probability"`
	PartialFillProbability decimal.NullDecimal `yaml:"partial_fill_probability"`
	MinLiquidityVolume     decimal.NullDecimal `yaml:"min_liquidity_volume"`

	ImpactThreshold    decimal.NullDecimal `yaml:"impact_threshold"`
	ImpactPerDollarPct decimal.NullDecimal `yaml:"impact_per_dollar_pct"`
}

// APIConfig contiene los base URLs de las APIs.
type APIConfig struct {
	GammaBase string `yaml:"gamma_base"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta SQLite, ":memory:" o postgres://...
}

// IsPostgres indica si el DSN apunta a PostgreSQL.
func (s StorageConfig) IsPostgres() bool {
	return strings.HasPrefix(s.DSN, "postgres://") || strings.HasPrefix(s.DSN, "postgresql://")
}

// StatusConfig controla el servidor de estado para el dashboard.
type StatusConfig struct {
	Addr string `yaml:"addr"` // vacío = desactivado
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// JudgeConfig controla la fuente de veredictos simulada.
type JudgeConfig struct {
	Seed    uint64          `yaml:"seed"`
	APICost decimal.Decimal `yaml:"api_cost"` // coste por veredicto
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return cfg, nil
}

// Parse aplica YAML y overrides de entorno sobre los defaults, y valida el
// resultado. Los decimales parten del default antes de leer el YAML, así un
// cero explícito se respeta.
func Parse(data []byte) (*Config, error) {
	cfg := Config{
		Agent: defaultAgent(),
		Judge: JudgeConfig{APICost: decimal.RequireFromString("0.01")},
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ScanInterval devuelve el intervalo entre ciclos completos.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Agent.ScanIntervalSecs) * time.Second
}

// PriceCheckInterval devuelve el intervalo del chequeo rápido de precios.
func (c *Config) PriceCheckInterval() time.Duration {
	return time.Duration(c.Agent.PriceCheckSecs) * time.Second
}

// SimConfig proyecta la sección simulation sobre los defaults del simulador.
func (c *Config) SimConfig() simulation.Config {
	out := simulation.DefaultConfig()
	s := c.Simulation

	setBool(&out.FeesEnabled, s.Fees)
	setBool(&out.SlippageEnabled, s.Slippage)
	setBool(&out.FillsEnabled, s.Fills)
	setBool(&out.ImpactEnabled, s.Impact)

	setDec(&out.GasFeeMin, s.GasFeeMin)
	setDec(&out.GasFeeMax, s.GasFeeMax)
	setDec(&out.PlatformFeePct, s.PlatformFeePct)
	setDec(&out.MakerFeePct, s.MakerFeePct)
	setDec(&out.TakerFeePct, s.TakerFeePct)
	setDec(&out.BaseSlippagePct, s.BaseSlippagePct)
	setDec(&out.SizePenaltyPct, s.SizePenaltyPct)
	setDec(&out.SizePenaltyThreshold, s.SizePenaltyThreshold)
	setDec(&out.RejectProbability, s.RejectProbability)
	setDec(&out.PartialFillProbability, s.PartialFillProbability)
	setDec(&out.MinLiquidityVolume, s.MinLiquidityVolume)
	setDec(&out.ImpactThreshold, s.ImpactThreshold)
	setDec(&out.ImpactPerDollarPct, s.ImpactPerDollarPct)
	return out
}

// Validate rechaza valores fuera de rango con ErrInvalid.
func (c *Config) Validate() error {
	a := c.Agent
	var problems []string

	if !a.InitialBalance.IsPositive() {
		problems = append(problems, "agent.initial_balance must be positive")
	}
	if a.KillThreshold.IsNegative() || a.KillThreshold.GreaterThanOrEqual(a.InitialBalance) {
		problems = append(problems, "agent.kill_threshold must be in [0, initial_balance)")
	}
	for name, v := range map[string]decimal.Decimal{
		"agent.max_position_pct":    a.MaxPositionPct,
		"agent.kelly_fraction":      a.KellyFraction,
		"agent.min_confidence":      a.MinConfidence,
		"agent.balance_reserve_pct": a.BalanceReservePct,
		"agent.max_spread":          a.MaxSpread,
		"agent.exit_tp_pct":         a.ExitTPPct,
		"agent.exit_sl_pct":         a.ExitSLPct,
	} {
		if !inUnit(v) {
			problems = append(problems, name+" must be in [0, 1]")
		}
	}
	if !a.MaxEdge.IsPositive() || !inUnit(a.MaxEdge) {
		problems = append(problems, "agent.max_edge must be in (0, 1]")
	}
	if a.MaxOpenPositions <= 0 {
		problems = append(problems, "agent.max_open_positions must be positive")
	}
	if c.Judge.APICost.IsNegative() {
		problems = append(problems, "judge.api_cost must not be negative")
	}

	sim := c.SimConfig()
	if sim.GasFeeMin.IsNegative() || sim.GasFeeMin.GreaterThan(sim.GasFeeMax) {
		problems = append(problems, "simulation.gas_fee_min must be in [0, gas_fee_max]")
	}
	for name, v := range map[string]decimal.Decimal{
		"simulation.platform_fee_pct":         sim.PlatformFeePct,
		"simulation.maker_fee_pct":            sim.MakerFeePct,
		"simulation.taker_fee_pct":            sim.TakerFeePct,
		"simulation.reject_probability":       sim.RejectProbability,
		"simulation.partial_fill_probability": sim.PartialFillProbability,
	} {
		if !inUnit(v) {
			problems = append(problems, name+" must be in [0, 1]")
		}
	}
	for name, v := range map[string]decimal.Decimal{
		"simulation.base_slippage_pct":      sim.BaseSlippagePct,
		"simulation.size_penalty_pct":       sim.SizePenaltyPct,
		"simulation.size_penalty_threshold": sim.SizePenaltyThreshold,
		"simulation.min_liquidity_volume":   sim.MinLiquidityVolume,
		"simulation.impact_threshold":       sim.ImpactThreshold,
		"simulation.impact_per_dollar_pct":  sim.ImpactPerDollarPct,
	} {
		if v.IsNegative() {
			problems = append(problems, name+" must not be negative")
		}
	}

	if len(problems) > 0 {
		slices.Sort(problems)
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) error {
	env := envReader{}
	a := &cfg.Agent
	s := &cfg.Simulation

	env.dec("INITIAL_BALANCE", &a.InitialBalance)
	env.dec("MAX_POSITION_PCT", &a.MaxPositionPct)
	env.dec("KILL_THRESHOLD", &a.KillThreshold)
	env.dec("KELLY_FRACTION", &a.KellyFraction)
	env.dec("MIN_CONFIDENCE", &a.MinConfidence)
	env.dec("BALANCE_RESERVE_PCT", &a.BalanceReservePct)
	env.dec("MAX_EDGE", &a.MaxEdge)
	env.dec("MAX_SPREAD", &a.MaxSpread)
	env.dec("EXIT_TP_PCT", &a.ExitTPPct)
	env.dec("EXIT_SL_PCT", &a.ExitSLPct)
	env.int("PRICE_CHECK_SECS", &a.PriceCheckSecs)
	env.int("SCAN_INTERVAL_SECS", &a.ScanIntervalSecs)
	env.int("MAX_OPEN_POSITIONS", &a.MaxOpenPositions)

	env.bool("SIM_FEES", &s.Fees)
	env.bool("SIM_SLIPPAGE", &s.Slippage)
	env.bool("SIM_FILLS", &s.Fills)
	env.bool("SIM_IMPACT", &s.Impact)
	env.nullDec("SIM_GAS_MIN", &s.GasFeeMin)
	env.nullDec("SIM_GAS_MAX", &s.GasFeeMax)
	env.nullDec("SIM_PLATFORM_FEE", &s.PlatformFeePct)
	env.nullDec("SIM_MAKER_FEE", &s.MakerFeePct)
	env.nullDec("SIM_TAKER_FEE", &s.TakerFeePct)
	env.nullDec("SIM_BASE_SLIPPAGE", &s.BaseSlippagePct)
	env.nullDec("SIM_SIZE_PENALTY", &s.SizePenaltyPct)
	env.nullDec("SIM_SIZE_THRESHOLD", &s.SizePenaltyThreshold)
	env.nullDec("SIM_REJECT_PROB", &s.RejectProbability)
	env.nullDec("SIM_PARTIAL_PROB", &s.PartialFillProbability)
	env.nullDec("SIM_MIN_LIQUIDITY", &s.MinLiquidityVolume)
	env.nullDec("SIM_IMPACT_THRESHOLD", &s.ImpactThreshold)
	env.nullDec("SIM_IMPACT_PER_DOLLAR", &s.ImpactPerDollarPct)

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("STATUS_ADDR"); v != "" {
		cfg.Status.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	if len(env.errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(env.errs, "; "))
	}
	return nil
}

// defaultAgent devuelve los valores de dinero y probabilidad de la sección
// agent. ExitTPPct y ExitSLPct quedan en cero (desactivados).
func defaultAgent() AgentConfig {
	return AgentConfig{
		InitialBalance:    decimal.NewFromInt(30),
		MaxPositionPct:    decimal.RequireFromString("0.08"),
		KillThreshold:     decimal.NewFromInt(15),
		KellyFraction:     decimal.RequireFromString("0.40"),
		MinConfidence:     decimal.RequireFromString("0.60"),
		BalanceReservePct: decimal.RequireFromString("0.10"),
		MaxEdge:           decimal.RequireFromString("0.35"),
		MaxSpread:         decimal.RequireFromString("0.05"),
	}
}

// setDefaults completa enteros y strings sin valor; los decimales ya vienen
// de defaultAgent.
func setDefaults(cfg *Config) {
	a := &cfg.Agent
	if a.MaxOpenPositions <= 0 {
		a.MaxOpenPositions = 8
	}
	if a.ScanIntervalSecs <= 0 {
		a.ScanIntervalSecs = 1800
	}
	if a.PriceCheckSecs <= 0 {
		a.PriceCheckSecs = 90
	}
	if a.MarketsPerCycle <= 0 {
		a.MarketsPerCycle = 20
	}
	if a.StopFile == "" {
		a.StopFile = "STOP"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "polyagent.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// --- helpers internos ---

type envReader struct {
	errs []string
}

func (e *envReader) dec(key string, dst *decimal.Decimal) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s=%q is not a number", key, v))
		return
	}
	*dst = d
}

func (e *envReader) nullDec(key string, dst *decimal.NullDecimal) {
	var d decimal.Decimal
	before := len(e.errs)
	if os.Getenv(key) == "" {
		return
	}
	e.dec(key, &d)
	if len(e.errs) == before {
		*dst = decimal.NewNullDecimal(d)
	}
}

func (e *envReader) int(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s=%q is not an integer", key, v))
		return
	}
	*dst = n
}

func (e *envReader) bool(key string, dst **bool) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s=%q is not a boolean", key, v))
		return
	}
	*dst = &b
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDec(dst *decimal.Decimal, v decimal.NullDecimal) {
	if v.Valid {
		*dst = v.Decimal
	}
}

func inUnit(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThanOrEqual(decimal.NewFromInt(1))
}
