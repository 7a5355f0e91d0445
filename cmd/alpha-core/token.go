// ABOUTME: The token command mints invoker JWTs for private variants
// ABOUTME: Tokens are signed with auth.jwt_secret from the loaded config

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ahi-governance/alpha-core/internal/auth"
	"github.com/ahi-governance/alpha-core/internal/config"
)

const defaultTokenTTL = 30 * 24 * time.Hour

type tokenArgs struct {
	subject  string
	ttl      time.Duration
	variants []string
}

// parseTokenArgs accepts "--flag value" and "--flag=value" for --subject,
// --ttl, and the repeatable --variant.
func parseTokenArgs(args []string) (*tokenArgs, error) {
	out := &tokenArgs{ttl: defaultTokenTTL}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, value, hasValue := strings.Cut(arg, "=")
		switch name {
		case "--subject", "-s", "--ttl", "--variant":
		default:
			if strings.HasPrefix(arg, "-") {
				return nil, fmt.Errorf("unknown flag: %s", arg)
			}
			return nil, fmt.Errorf("unexpected argument: %s", arg)
		}
		if !hasValue {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("%s requires a value", name)
			}
			value = args[i+1]
			i++
		}

		switch name {
		case "--subject", "-s":
			out.subject = strings.TrimSpace(value)
		case "--ttl":
			ttl, err := time.ParseDuration(value)
			if err != nil {
				return nil, fmt.Errorf("parsing --ttl: %w", err)
			}
			if ttl <= 0 {
				return nil, errors.New("--ttl must be positive")
			}
			out.ttl = ttl
		case "--variant":
			out.variants = append(out.variants, value)
		}
	}

	if out.subject == "" {
		return nil, errors.New("--subject flag is required")
	}
	return out, nil
}

// checkTokenVariants rejects variant names that are missing or public in cfg.
func checkTokenVariants(cfg *config.Config, variants []string) error {
	byName := make(map[string]config.VariantConfig, len(cfg.Variants))
	for _, v := range cfg.Variants {
		byName[v.Name] = v
	}
	for _, name := range variants {
		v, ok := byName[name]
		if !ok {
			return fmt.Errorf("unknown variant %q", name)
		}
		if v.Invoker != config.InvokerPrivate {
			return fmt.Errorf("variant %q is public and does not check tokens", name)
		}
	}
	return nil
}

func runToken(args []string) error {
	ta, err := parseTokenArgs(args)
	if err != nil {
		return err
	}

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret not configured in %s", configPath)
	}
	if err := checkTokenVariants(cfg, ta.variants); err != nil {
		return err
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}

	token, err := verifier.Generate(ta.subject, ta.ttl, ta.variants...)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Println(token)
	return nil
}
