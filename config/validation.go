package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// requirement names a setting that must be non-empty in an environment
type requirement struct {
	Name  string
	Value func(*Config) string
}

var (
	dbPassword          = requirement{"DB_PASSWORD / db_password", func(c *Config) string { return c.DBPassword }}
	openAIKey           = requirement{"OPENAI_API_KEY / openai_api_key", func(c *Config) string { return c.OpenAIAPIKey }}
	firebaseProject     = requirement{"FIREBASE_PROJECT_ID", func(c *Config) string { return c.FirebaseProjectID }}
	stripeSecretKey     = requirement{"STRIPE_SECRET_KEY / stripe_secret_key", func(c *Config) string { return c.StripeSecretKey }}
	stripeWebhookSecret = requirement{"STRIPE_WEBHOOK_SECRET / stripe_webhook_secret", func(c *Config) string { return c.StripeWebhookSecret }}
	stripePricePremium  = requirement{"STRIPE_PRICE_PREMIUM", func(c *Config) string { return c.StripePricePremium }}
	stripePricePro      = requirement{"STRIPE_PRICE_PRO", func(c *Config) string { return c.StripePricePro }}
	s3Bucket            = requirement{"S3_BUCKET_NAME", func(c *Config) string { return c.S3BucketName }}

	// Environment-specific requirements
	requirements = map[Environment][]requirement{
		Development: {},
		Test:        {},
		CI:          {dbPassword},
		Production: {
			dbPassword,
			openAIKey,
			firebaseProject,
			stripeSecretKey,
			stripeWebhookSecret,
			stripePricePremium,
			stripePricePro,
			s3Bucket,
		},
	}

	validate = validator.New(validator.WithRequiredStructEnabled())
)

// ValidateConfig checks if the configuration meets the requirements for the current environment
func ValidateConfig(cfg *Config) error {
	env := GetEnvironment()

	var problems []string

	for _, req := range requirements[env] {
		if strings.TrimSpace(req.Value(cfg)) == "" {
			problems = append(problems, fmt.Sprintf("required setting %s is not set", req.Name))
		}
	}

	if cfg.AuthDisabled && !AllowsAuthBypass() {
		problems = append(problems, ValidationError{Field: "AUTH_DISABLED", Message: "only allowed in development and test"}.Error())
	}

	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			problems = append(problems, ValidationError{
				Field:   fe.Field(),
				Message: fmt.Sprintf("failed %q rule (value %v)", fe.Tag(), fe.Value()),
			}.Error())
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(problems, "\n"))
	}

	return nil
}
