package wallet

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/mrz1836/compass/internal/catalog"
	"github.com/mrz1836/compass/internal/chain"
	"github.com/mrz1836/compass/internal/chainsync"
	"github.com/mrz1836/compass/internal/dispatch"
	"github.com/mrz1836/compass/internal/metrics"
	"github.com/mrz1836/compass/internal/provider"
	"github.com/mrz1836/compass/internal/query"
	"github.com/mrz1836/compass/internal/session"
	"github.com/mrz1836/compass/internal/signing"
	compasserr "github.com/mrz1836/compass/pkg/errors"
)

// Config contains dependencies for creating a wallet service.
type Config struct {
	Provider provider.Provider
	// Registry resolves known contracts. Nil uses chain.DefaultRegistry.
	Registry *chain.Registry
	Settings Settings
	// ReferenceChain is where ReadPool reads the registered pair.
	ReferenceChain chain.ID

	Binding        signing.ChainBinding
	PollInterval   time.Duration
	ConfirmTimeout time.Duration

	// Component overrides. Nil builds the default over Provider.
	Reconciler Reconciler
	Dispatcher Dispatcher
	Signer     Signer
	Reader     Reader

	Logger  LogWriter
	Metrics *metrics.Metrics
	// Closer runs on Close, typically to destroy key material.
	Closer func()
}

// Service runs wallet operations against a single connected session.
type Service struct {
	provider   provider.Provider
	registry   *chain.Registry
	settings   Settings
	reconciler Reconciler
	dispatcher Dispatcher
	signer     Signer
	reader     Reader
	logger     LogWriter
	closer     func()
	closeOnce  sync.Once

	mu          sync.RWMutex
	holder      *session.Holder
	catalog     *catalog.Catalog
	selected    *catalog.Asset
	selectedGen uint64
}

// NewService creates a new wallet service instance.
func NewService(cfg *Config) *Service {
	s := &Service{
		provider:   cfg.Provider,
		registry:   cfg.Registry,
		settings:   cfg.Settings,
		reconciler: cfg.Reconciler,
		dispatcher: cfg.Dispatcher,
		signer:     cfg.Signer,
		reader:     cfg.Reader,
		logger:     cfg.Logger,
		closer:     cfg.Closer,
	}
	if s.registry == nil {
		s.registry = chain.DefaultRegistry()
	}
	if s.logger == nil {
		s.logger = nopLogger{}
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global
	}

	if s.reconciler == nil {
		s.reconciler = chainsync.New(cfg.Provider, chainsync.WithLogger(s.logger), chainsync.WithMetrics(m))
	}
	if s.dispatcher == nil {
		s.dispatcher = dispatch.New(cfg.Provider, s.reconciler, dispatch.Options{
			PollInterval:   cfg.PollInterval,
			ConfirmTimeout: cfg.ConfirmTimeout,
			Logger:         s.logger,
			Metrics:        m,
		})
	}
	if s.signer == nil {
		s.signer = signing.New(cfg.Provider, s.reconciler, signing.Options{
			Binding: cfg.Binding,
			Logger:  s.logger,
			Metrics: m,
		})
	}
	if s.reader == nil {
		s.reader = query.New(cfg.Provider, s.reconciler, query.Options{
			Registry:       s.registry,
			ReferenceChain: cfg.ReferenceChain,
			Logger:         s.logger,
			Metrics:        m,
		})
	}
	return s
}

// Bootstrap connects to the provider, builds the catalog from its
// descriptor, selects the initial asset and aligns the provider with that
// asset's chain. Malformed catalog entries are dropped and reported.
func (s *Service) Bootstrap(ctx context.Context) (*BootstrapResult, error) {
	sess, err := session.Connect(ctx, s.provider)
	if err != nil {
		return nil, err
	}

	cat, dropped := catalog.Build(sess.Currencies)
	for _, d := range dropped {
		s.logger.Error("dropping catalog entry: %v", d)
	}

	holder := session.NewHolder(sess)
	s.mu.Lock()
	s.holder = holder
	s.catalog = cat
	s.selected = nil
	s.selectedGen = 0
	s.mu.Unlock()

	result := &BootstrapResult{Session: holder.Current(), Assets: cat.Len()}
	for _, d := range dropped {
		result.Dropped = append(result.Dropped, d.Error())
	}

	preferred := ""
	if s.settings.PreferredChain != 0 {
		preferred = s.settings.PreferredChain.Wire()
	}
	initial, ok := catalog.SelectInitial(cat.Assets(), preferred)
	if !ok {
		s.logger.Debug("catalog is empty, no initial selection")
		return result, nil
	}

	aligned, err := s.adopt(ctx, initial)
	if err != nil {
		return nil, err
	}
	result.Session = aligned
	result.Selected = &initial
	return result, nil
}

// Select makes the asset with the given id current and aligns the provider
// with its chain. When a newer selection overtakes this one the newer
// selection stands and ErrStaleReconciliation is returned.
func (s *Service) Select(ctx context.Context, id string) (*catalog.Asset, error) {
	cat, err := s.Catalog()
	if err != nil {
		return nil, err
	}
	asset, err := cat.Find(id)
	if err != nil {
		return nil, err
	}
	if _, err := s.adopt(ctx, asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

// adopt aligns the provider with asset's chain and stores it as the
// selection if this alignment is still the newest one.
func (s *Service) adopt(ctx context.Context, asset catalog.Asset) (*session.Session, error) {
	holder, err := s.currentHolder()
	if err != nil {
		return nil, err
	}

	sess, err := s.reconciler.Align(ctx, holder, asset.ChainID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.Generation >= s.selectedGen {
		selected := asset
		s.selected = &selected
		s.selectedGen = sess.Generation
	}
	s.logger.Debug("selected %s on %s", asset.ID, asset.ChainID.Wire())
	return sess, nil
}

// Selected returns the current asset selection.
func (s *Service) Selected() (*catalog.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.holder == nil {
		return nil, notConnected()
	}
	if s.selected == nil {
		return nil, compasserr.ErrNoAssetSelected
	}
	a := *s.selected
	return &a, nil
}

// Catalog returns the asset catalog built at bootstrap.
func (s *Service) Catalog() (*catalog.Catalog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.holder == nil {
		return nil, notConnected()
	}
	return s.catalog, nil
}

// Session returns a copy of the current session.
func (s *Service) Session() (*session.Session, error) {
	holder, err := s.currentHolder()
	if err != nil {
		return nil, err
	}
	return holder.Current(), nil
}

// SignMessage requests a personal_sign signature from the session account.
func (s *Service) SignMessage(ctx context.Context, msg []byte) (*signing.MessageSignature, error) {
	sess, err := s.Session()
	if err != nil {
		return nil, err
	}
	return s.signer.SignMessage(ctx, sess, msg)
}

// SignTypedData requests an EIP-712 signature. A domain bound to a chain
// leaves the provider on that chain, which the session then records.
func (s *Service) SignTypedData(ctx context.Context, td apitypes.TypedData) (*signing.TypedDataSignature, error) {
	sess, err := s.Session()
	if err != nil {
		return nil, err
	}
	sig, err := s.signer.SignTypedData(ctx, sess, td)
	if err != nil {
		return nil, err
	}
	if sig.ChainID != 0 {
		s.observe(sig.ChainID)
	}
	return sig, nil
}

// SendNative transfers a native asset. The asset defaults to the current
// selection and the recipient to the configured one.
func (s *Service) SendNative(ctx context.Context, req SendRequest) (*dispatch.Result, error) {
	asset, to, err := s.resolveSend(req)
	if err != nil {
		return nil, err
	}
	return s.dispatch(ctx, dispatch.NativeTransfer{Asset: asset, To: to, Amount: req.Amount})
}

// SendToken transfers a token asset through its contract's transfer call.
func (s *Service) SendToken(ctx context.Context, req SendRequest) (*dispatch.Result, error) {
	asset, to, err := s.resolveSend(req)
	if err != nil {
		return nil, err
	}
	return s.dispatch(ctx, dispatch.ContractTransfer{Asset: asset, To: to, Amount: req.Amount})
}

// SendKnownToken transfers the token registered for a chain.
func (s *Service) SendKnownToken(ctx context.Context, req KnownSendRequest) (*dispatch.Result, error) {
	sess, err := s.Session()
	if err != nil {
		return nil, err
	}
	id := req.ChainID
	if id == 0 {
		id = sess.ObservedChain
	}
	to, err := s.recipient(req.To)
	if err != nil {
		return nil, err
	}
	shape, err := dispatch.KnownTokenTransfer(s.registry, id, to, req.Amount)
	if err != nil {
		return nil, err
	}
	return s.dispatch(ctx, shape)
}

func (s *Service) dispatch(ctx context.Context, shape dispatch.Shape) (*dispatch.Result, error) {
	sess, err := s.Session()
	if err != nil {
		return nil, err
	}
	res, err := s.dispatcher.Dispatch(ctx, sess, shape)
	if res != nil && res.ChainID != 0 {
		s.observe(res.ChainID)
	}
	return res, err
}

// ReadToken introspects the known token on the provider's current chain.
func (s *Service) ReadToken(ctx context.Context) (*query.TokenInfo, error) {
	sess, err := s.Session()
	if err != nil {
		return nil, err
	}
	info, err := s.reader.TokenInfo(ctx, sess)
	if err != nil {
		return nil, err
	}
	s.observe(info.ChainID)
	return info, nil
}

// ReadPool reads the registered pair's reserves on the reference chain.
func (s *Service) ReadPool(ctx context.Context) (*query.PoolReserves, error) {
	if _, err := s.Session(); err != nil {
		return nil, err
	}
	res, err := s.reader.PoolReserves(ctx)
	if err != nil {
		return nil, err
	}
	s.observe(res.ChainID)
	return res, nil
}

// Close releases resources held by the service. It is safe to call twice.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		if s.closer != nil {
			s.closer()
		}
	})
}

func (s *Service) resolveSend(req SendRequest) (catalog.Asset, common.Address, error) {
	var asset catalog.Asset
	if req.AssetID == "" {
		selected, err := s.Selected()
		if err != nil {
			return catalog.Asset{}, common.Address{}, err
		}
		asset = *selected
	} else {
		cat, err := s.Catalog()
		if err != nil {
			return catalog.Asset{}, common.Address{}, err
		}
		if asset, err = cat.Find(req.AssetID); err != nil {
			return catalog.Asset{}, common.Address{}, err
		}
	}

	to, err := s.recipient(req.To)
	if err != nil {
		return catalog.Asset{}, common.Address{}, err
	}
	return asset, to, nil
}

func (s *Service) recipient(raw string) (common.Address, error) {
	if raw != "" {
		return chain.ParseAddress(raw)
	}
	if s.settings.Recipient == nil {
		return common.Address{}, compasserr.WithSuggestion(
			compasserr.WithDetails(compasserr.ErrInvalidAddress, map[string]string{"reason": "no recipient given"}),
			"pass --to or set settings.recipient in the config file",
		)
	}
	return *s.settings.Recipient, nil
}

// observe records a chain the provider was left on by an operation that
// reconciled outside Align. It never supersedes a selection in flight.
func (s *Service) observe(id chain.ID) {
	holder, err := s.currentHolder()
	if err != nil {
		return
	}
	holder.Observe(id)
}

func (s *Service) currentHolder() (*session.Holder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.holder == nil {
		return nil, notConnected()
	}
	return s.holder, nil
}

func notConnected() error {
	return compasserr.WithSuggestion(compasserr.ErrConnection, "bootstrap the session before running operations")
}

// IsStale reports whether err means a newer selection superseded this one.
func IsStale(err error) bool {
	return errors.Is(err, compasserr.ErrStaleReconciliation)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
