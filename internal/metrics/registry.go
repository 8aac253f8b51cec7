package metrics

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Labels набор меток серии
type Labels = prometheus.Labels

var (
	ErrNegativeDelta = errors.New("counter delta must be >= 0")
	ErrInvalidValue  = errors.New("metric value must be finite")
	ErrKindMismatch  = errors.New("metric registered with a different kind")
	ErrLabelMismatch = errors.New("metric registered with a different label set")
)

// ContentType тип ответа текстового формата экспозиции
const ContentType = string(expfmt.FmtText)

// Registry хранилище счётчиков, gauge и гистограмм с текстовым рендером
//
// Каждый экземпляр владеет своим prometheus.Registry, поэтому тесты
// создают свежий реестр на кейс. Векторы prometheus потокобезопасны,
// карта name -> vector защищена RWMutex.
type Registry struct {
	reg *prometheus.Registry

	mu       sync.RWMutex
	defs     map[string]Definition
	families map[string]*family
}

type family struct {
	kind       Kind
	labelNames []string
	counter    *prometheus.CounterVec
	gauge      *prometheus.GaugeVec
	histogram  *prometheus.HistogramVec
}

// Option настройка реестра
type Option func(*Registry)

// WithDefinitions добавляет или переопределяет описания серий
func WithDefinitions(defs ...Definition) Option {
	return func(r *Registry) {
		for _, d := range defs {
			r.defs[d.Name] = d
		}
	}
}

// WithRuntimeCollectors регистрирует go_* и process_* метрики
func WithRuntimeCollectors() Option {
	return func(r *Registry) {
		r.reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
}

// NewRegistry создаёт реестр с каталогом по умолчанию
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		reg:      prometheus.NewRegistry(),
		defs:     make(map[string]Definition),
		families: make(map[string]*family),
	}
	for _, d := range Catalogue() {
		r.defs[d.Name] = d
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IncCounter увеличивает счётчик на delta (delta >= 0)
func (r *Registry) IncCounter(name string, labels Labels, delta float64) error {
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return fmt.Errorf("%w: %s=%v", ErrInvalidValue, name, delta)
	}
	if delta < 0 {
		return fmt.Errorf("%w: %s=%v", ErrNegativeDelta, name, delta)
	}

	f, err := r.family(name, KindCounter, labels)
	if err != nil {
		return err
	}
	c, err := f.counter.GetMetricWith(labels)
	if err != nil {
		return fmt.Errorf("counter %s: %w", name, err)
	}
	c.Add(delta)
	return nil
}

// SetGauge перезаписывает значение gauge
func (r *Registry) SetGauge(name string, labels Labels, value float64) error {
	f, err := r.family(name, KindGauge, labels)
	if err != nil {
		return err
	}
	g, err := f.gauge.GetMetricWith(labels)
	if err != nil {
		return fmt.Errorf("gauge %s: %w", name, err)
	}
	g.Set(value)
	return nil
}

// ObserveHistogram добавляет наблюдение; экспонируются _count и _sum
func (r *Registry) ObserveHistogram(name string, labels Labels, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: %s=%v", ErrInvalidValue, name, value)
	}

	f, err := r.family(name, KindHistogram, labels)
	if err != nil {
		return err
	}
	h, err := f.histogram.GetMetricWith(labels)
	if err != nil {
		return fmt.Errorf("histogram %s: %w", name, err)
	}
	h.Observe(value)
	return nil
}

// Render возвращает все серии в текстовом формате Prometheus
func (r *Registry) Render() (string, error) {
	var buf bytes.Buffer
	if err := r.Write(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Write пишет текстовую экспозицию в w
func (r *Registry) Write(w io.Writer) error {
	mfs, err := r.reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Gatherer доступ к нижележащему реестру
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

func (r *Registry) family(name string, kind Kind, labels Labels) (*family, error) {
	names := labelNames(labels)

	r.mu.RLock()
	f, ok := r.families[name]
	r.mu.RUnlock()

	if !ok {
		r.mu.Lock()
		f, ok = r.families[name]
		if !ok {
			var err error
			f, err = r.register(name, kind, names)
			if err != nil {
				r.mu.Unlock()
				return nil, err
			}
			r.families[name] = f
		}
		r.mu.Unlock()
	}

	if f.kind != kind {
		return nil, fmt.Errorf("%w: %s is a %s, not a %s", ErrKindMismatch, name, f.kind, kind)
	}
	if !sameNames(f.labelNames, names) {
		return nil, fmt.Errorf("%w: %s expects %v, got %v", ErrLabelMismatch, name, f.labelNames, names)
	}
	return f, nil
}

// register вызывается под r.mu
func (r *Registry) register(name string, kind Kind, names []string) (*family, error) {
	help := name
	var buckets []float64
	if d, ok := r.defs[name]; ok {
		if d.Kind != kind {
			return nil, fmt.Errorf("%w: %s is a %s, not a %s", ErrKindMismatch, name, d.Kind, kind)
		}
		if d.Help != "" {
			help = d.Help
		}
		buckets = d.Buckets
	}

	f := &family{kind: kind, labelNames: names}
	var c prometheus.Collector
	switch kind {
	case KindCounter:
		f.counter = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, names)
		c = f.counter
	case KindGauge:
		f.gauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, names)
		c = f.gauge
	case KindHistogram:
		if len(buckets) == 0 {
			buckets = prometheus.DefBuckets
		}
		f.histogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets}, names)
		c = f.histogram
	default:
		return nil, fmt.Errorf("unknown metric kind %d", kind)
	}

	if err := r.reg.Register(c); err != nil {
		return nil, fmt.Errorf("register %s: %w", name, err)
	}
	return f, nil
}

func labelNames(labels Labels) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ============================================================
// Чтение значений
// ============================================================

// Sample значение одной серии
//
// Для counter/gauge заполнено Value, для гистограммы Count и Sum.
type Sample struct {
	Labels map[string]string
	Value  float64
	Count  uint64
	Sum    float64
}

// Samples возвращает все серии метрики name (пусто, если серий нет)
//
// Чтение идёт через Gather и не создаёт новых серий.
func (r *Registry) Samples(name string) ([]Sample, error) {
	mfs, err := r.reg.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		out := make([]Sample, 0, len(mf.GetMetric()))
		for _, m := range mf.GetMetric() {
			out = append(out, toSample(mf.GetType(), m))
		}
		return out, nil
	}
	return nil, nil
}

// Sum суммирует значения серий, метки которых содержат match
func (r *Registry) Sum(name string, match Labels) float64 {
	samples, err := r.Samples(name)
	if err != nil {
		return 0
	}
	var total float64
	for _, s := range samples {
		if contains(s.Labels, match) {
			total += s.Value
		}
	}
	return total
}

// Value значение серии с точным набором меток (0, если серии нет)
func (r *Registry) Value(name string, labels Labels) float64 {
	samples, err := r.Samples(name)
	if err != nil {
		return 0
	}
	for _, s := range samples {
		if len(s.Labels) == len(labels) && contains(s.Labels, labels) {
			return s.Value
		}
	}
	return 0
}

func toSample(t dto.MetricType, m *dto.Metric) Sample {
	s := Sample{Labels: make(map[string]string, len(m.GetLabel()))}
	for _, lp := range m.GetLabel() {
		s.Labels[lp.GetName()] = lp.GetValue()
	}
	switch t {
	case dto.MetricType_COUNTER:
		s.Value = m.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		s.Value = m.GetGauge().GetValue()
	case dto.MetricType_HISTOGRAM:
		s.Count = m.GetHistogram().GetSampleCount()
		s.Sum = m.GetHistogram().GetSampleSum()
		s.Value = float64(s.Count)
	}
	return s
}

func contains(have map[string]string, want Labels) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}
