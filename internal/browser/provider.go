package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"pollwatch/internal/poll"
	"pollwatch/internal/schedule"
)

// Config holds browser configuration.
type Config struct {
	BaseURL           string
	CookiesPath       string
	Headless          bool
	Bin               string // optional explicit Chrome binary
	NavigationTimeout time.Duration
}

// Provider owns one Chrome instance and opens an isolated page per class.
type Provider struct {
	cfg    Config
	logger *zap.Logger

	mu      sync.Mutex
	browser *rod.Browser
}

// NewProvider creates a provider. The browser is launched lazily on the
// first Open.
func NewProvider(cfg Config, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	return &Provider{cfg: cfg, logger: logger}
}

func (p *Provider) ensureStarted(ctx context.Context) (*rod.Browser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.browser != nil {
		if _, err := p.browser.Version(); err == nil {
			return p.browser, nil
		}
		p.logger.Warn("stale browser connection, relaunching")
		_ = p.browser.Close()
		p.browser = nil
	}

	launch := launcher.New().Headless(p.cfg.Headless)
	if p.cfg.Bin != "" {
		launch = launch.Bin(p.cfg.Bin)
	}
	controlURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	p.browser = browser
	return p.browser, nil
}

// loadCookies reads the cookie jar saved by the login flow.
func (p *Provider) loadCookies() ([]*proto.NetworkCookie, error) {
	data, err := os.ReadFile(p.cfg.CookiesPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no saved state at %s", poll.ErrSessionUnavailable, p.cfg.CookiesPath)
		}
		return nil, fmt.Errorf("read cookie jar: %w", err)
	}
	var cookies []*proto.NetworkCookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("parse cookie jar %s: %w", p.cfg.CookiesPath, err)
	}
	if len(cookies) == 0 {
		return nil, fmt.Errorf("%w: cookie jar %s is empty", poll.ErrSessionUnavailable, p.cfg.CookiesPath)
	}
	return cookies, nil
}

// Open creates an incognito page for the class section with the saved login
// cookies and a geolocation override from the class coordinates.
func (p *Provider) Open(ctx context.Context, class schedule.Class) (poll.Session, error) {
	cookies, err := p.loadCookies()
	if err != nil {
		return nil, err
	}

	browser, err := p.ensureStarted(ctx)
	if err != nil {
		return nil, err
	}

	incognito, err := browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: c.SameSite,
			Priority: c.Priority,
		})
	}
	if err := page.SetCookies(params); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("restore cookies: %w", err)
	}

	if err := p.spoofGeolocation(incognito, page, class); err != nil {
		p.logger.Warn("geolocation override failed",
			zap.String("class", class.Name), zap.Error(err))
	}

	url := fmt.Sprintf("%s/%s", p.cfg.BaseURL, class.Section)
	if err := page.Timeout(p.cfg.NavigationTimeout).Navigate(url); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("navigate to %s: %w", url, err)
	}

	sess := &pageSession{
		id:     uuid.NewString(),
		page:   page,
		logger: p.logger.With(zap.String("class", class.Name)),
	}
	p.logger.Info("page session opened",
		zap.String("class", class.Name),
		zap.String("url", url),
		zap.String("session", sess.id))
	return sess, nil
}

// spoofGeolocation applies the class coordinates to the page. Rosters edited
// by hand occasionally swap the columns; a negative latitude with a positive
// longitude is repaired here the way the poll site expects for US campuses.
func (p *Provider) spoofGeolocation(incognito *rod.Browser, page *rod.Page, class schedule.Class) error {
	lat, lon := class.Latitude, class.Longitude
	if lon > 0 && lat < 0 {
		lat, lon = lon, lat
	}
	if lat == 0 && lon == 0 {
		return nil
	}

	grant := proto.BrowserGrantPermissions{
		Permissions:      []proto.BrowserPermissionType{proto.BrowserPermissionTypeGeolocation},
		BrowserContextID: incognito.BrowserContextID,
	}
	if err := grant.Call(incognito); err != nil {
		return fmt.Errorf("grant geolocation permission: %w", err)
	}

	accuracy := 10.0
	override := proto.EmulationSetGeolocationOverride{
		Latitude:  &lat,
		Longitude: &lon,
		Accuracy:  &accuracy,
	}
	if err := override.Call(page); err != nil {
		return fmt.Errorf("set geolocation override: %w", err)
	}
	return nil
}

// Close shuts down the shared Chrome instance.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.browser == nil {
		return nil
	}
	err := p.browser.Close()
	p.browser = nil
	return err
}
