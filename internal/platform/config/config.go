package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile      = ".env"
	defaultPort         = "8080"
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 120 * time.Second

	defaultCurrency              = "gbp"
	defaultTaxRateBasisPoints    = 2000
	defaultShippingFee           = 499
	defaultFreeShippingThreshold = 5000
	defaultDualSidedSurcharge    = 500

	defaultOrderIDPrefix    = "ORD"
	defaultOrderSequencePad = 3

	defaultNotificationTopic = "order-notifications"
	defaultAdminKeyHeader    = "X-Admin-Api-Key"

	secretRefPrefix = "secret://"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server        ServerConfig
	Firestore     FirestoreConfig
	Firebase      FirebaseConfig
	PSP           PSPConfig
	Pricing       PricingConfig
	Orders        OrdersConfig
	Notifications NotificationsConfig
	Admin         AdminConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// FirebaseConfig stores Firebase project settings used for optional
// ID-token verification on checkout.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// PSPConfig collects secrets for the payment provider.
type PSPConfig struct {
	StripeAPIKey        string
	StripeWebhookSecret string
}

// PricingConfig holds the monetary rules applied during price verification.
// All amounts are minor units of Currency.
type PricingConfig struct {
	Currency              string
	TaxRateBasisPoints    int64
	ShippingFee           int64
	FreeShippingThreshold int64
	DualSidedSurcharge    int64
}

// OrdersConfig controls order identifier formatting.
type OrdersConfig struct {
	IDPrefix    string
	SequencePad int
}

// NotificationsConfig names the Pub/Sub topic carrying email jobs and the
// operator address for admin alerts.
type NotificationsConfig struct {
	TopicID    string
	AdminEmail string
}

// AdminConfig guards the operator status-edit surface.
type AdminConfig struct {
	APIKey       string
	APIKeyHeader string
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the dotenv file consulted before the process environment.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap supplies values directly, bypassing the process environment. Primarily for tests.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
		o.useSystemEnv = false
	}
}

// WithSecretResolver wires the resolver used for secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// Load assembles the configuration from the environment, resolving secret
// references and validating required fields.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	values := map[string]string{}
	if options.envFile != "" {
		fileValues, err := readEnvFile(options.envFile)
		if err != nil {
			return Config{}, err
		}
		for k, v := range fileValues {
			values[k] = v
		}
	}
	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				continue
			}
			values[parts[0]] = parts[1]
		}
	}
	for k, v := range options.envMap {
		values[k] = v
	}

	lookup := func(key string) string {
		return strings.TrimSpace(values[key])
	}

	resolve := func(key string) (string, error) {
		raw := lookup(key)
		if !strings.HasPrefix(raw, secretRefPrefix) {
			return raw, nil
		}
		if options.secret == nil {
			return "", &SecretError{Ref: raw, Err: errSecretResolverNotConfigured}
		}
		value, err := options.secret.ResolveSecret(ctx, raw)
		if err != nil {
			return "", &SecretError{Ref: raw, Err: err}
		}
		return strings.TrimSpace(value), nil
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         defaultString(lookup("API_SERVER_PORT"), defaultPort),
			ReadTimeout:  durationValue(lookup("API_SERVER_READ_TIMEOUT"), defaultReadTimeout),
			WriteTimeout: durationValue(lookup("API_SERVER_WRITE_TIMEOUT"), defaultWriteTimeout),
			IdleTimeout:  durationValue(lookup("API_SERVER_IDLE_TIMEOUT"), defaultIdleTimeout),
		},
		Firestore: FirestoreConfig{
			ProjectID:    lookup("API_FIRESTORE_PROJECT_ID"),
			EmulatorHost: lookup("API_FIRESTORE_EMULATOR_HOST"),
		},
		Firebase: FirebaseConfig{
			ProjectID:       lookup("API_FIREBASE_PROJECT_ID"),
			CredentialsFile: lookup("API_FIREBASE_CREDENTIALS_FILE"),
		},
		Pricing: PricingConfig{
			Currency:              strings.ToLower(defaultString(lookup("API_PRICING_CURRENCY"), defaultCurrency)),
			TaxRateBasisPoints:    int64Value(lookup("API_PRICING_TAX_RATE_BPS"), defaultTaxRateBasisPoints),
			ShippingFee:           int64Value(lookup("API_PRICING_SHIPPING_FEE"), defaultShippingFee),
			FreeShippingThreshold: int64Value(lookup("API_PRICING_FREE_SHIPPING_THRESHOLD"), defaultFreeShippingThreshold),
			DualSidedSurcharge:    int64Value(lookup("API_PRICING_DUAL_SIDED_SURCHARGE"), defaultDualSidedSurcharge),
		},
		Orders: OrdersConfig{
			IDPrefix:    defaultString(lookup("API_ORDERS_ID_PREFIX"), defaultOrderIDPrefix),
			SequencePad: intValue(lookup("API_ORDERS_SEQUENCE_PAD"), defaultOrderSequencePad),
		},
		Notifications: NotificationsConfig{
			TopicID:    defaultString(lookup("API_NOTIFICATIONS_TOPIC"), defaultNotificationTopic),
			AdminEmail: lookup("API_NOTIFICATIONS_ADMIN_EMAIL"),
		},
		Admin: AdminConfig{
			APIKeyHeader: defaultString(lookup("API_ADMIN_KEY_HEADER"), defaultAdminKeyHeader),
		},
	}

	var resolveErr error
	resolveInto := func(target *string, key string) {
		if resolveErr != nil {
			return
		}
		value, err := resolve(key)
		if err != nil {
			resolveErr = err
			return
		}
		*target = value
	}

	resolveInto(&cfg.PSP.StripeAPIKey, "API_PSP_STRIPE_API_KEY")
	resolveInto(&cfg.PSP.StripeWebhookSecret, "API_PSP_STRIPE_WEBHOOK_SECRET")
	resolveInto(&cfg.Admin.APIKey, "API_ADMIN_API_KEY")
	if resolveErr != nil {
		return Config{}, resolveErr
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	var missing []string
	if cfg.Firestore.ProjectID == "" && os.Getenv("GOOGLE_CLOUD_PROJECT") == "" {
		missing = append(missing, "Firestore.ProjectID")
	}
	if cfg.PSP.StripeAPIKey == "" {
		missing = append(missing, "PSP.StripeAPIKey")
	}
	if cfg.PSP.StripeWebhookSecret == "" {
		missing = append(missing, "PSP.StripeWebhookSecret")
	}
	if cfg.Admin.APIKey == "" {
		missing = append(missing, "Admin.APIKey")
	}
	if cfg.Notifications.AdminEmail == "" {
		missing = append(missing, "Notifications.AdminEmail")
	}
	if cfg.Pricing.TaxRateBasisPoints < 0 || cfg.Pricing.TaxRateBasisPoints > 10000 {
		missing = append(missing, "Pricing.TaxRateBasisPoints")
	}
	if cfg.Orders.SequencePad < 3 {
		missing = append(missing, "Orders.SequencePad")
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return &ValidationError{fields: missing}
}

func readEnvFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("config: open env file %s: %w", path, err)
	}
	defer func() {
		_ = file.Close()
	}()

	values := map[string]string{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read env file %s: %w", path, err)
	}
	return values, nil
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func durationValue(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func int64Value(raw string, fallback int64) int64 {
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func intValue(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
