package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// parseYAML parses the specific two-level mapping used by config.yaml
func parseYAML(r io.Reader, cfg *Config) error {
	type section int
	const (
		none section = iota
		db
		rm
		rd
		sv
		jw
		to
		pm
	)

	scanner := bufio.NewScanner(r)
	var cur section

	lineNo := 0
	seenTop := map[section]bool{}

	markSeen := func(s section, name string) error {
		if seenTop[s] {
			return fmt.Errorf("line %d: duplicate '%s' section", lineNo, name)
		}
		seenTop[s] = true
		cur = s
		return nil
	}

	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()

		// strip comments
		if i := strings.IndexByte(raw, '#'); i >= 0 {
			raw = raw[:i]
		}

		line := strings.TrimRight(raw, " \t\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}

		// top-level section? (no leading spaces)
		if len(line) > 0 && (line[0] != ' ' && line[0] != '\t') {
			var err error
			switch strings.TrimSpace(line) {
			case "database:":
				err = markSeen(db, "database")
			case "rabbitmq:":
				err = markSeen(rm, "rabbitmq")
			case "redis:":
				err = markSeen(rd, "redis")
			case "services:":
				err = markSeen(sv, "services")
			case "jwt:":
				err = markSeen(jw, "jwt")
			case "timeouts:":
				err = markSeen(to, "timeouts")
			case "payments:":
				err = markSeen(pm, "payments")
			default:
				return fmt.Errorf("line %d: unknown top-level key %q", lineNo, strings.TrimSuffix(strings.TrimSpace(line), ":"))
			}
			if err != nil {
				return err
			}
			continue
		}

		// expect indented "key: value"
		if cur == none {
			return fmt.Errorf("line %d: key without a section", lineNo)
		}
		trim := strings.TrimSpace(line)
		colon := strings.IndexByte(trim, ':')
		if colon <= 0 {
			return fmt.Errorf("line %d: expected 'key: value'", lineNo)
		}
		key := strings.TrimSpace(trim[:colon])
		val := strings.TrimLeft(strings.TrimSpace(trim[colon+1:]), " \t")

		atoi := func(section string) (int, error) {
			n, err := strconv.Atoi(resolveScalar(val))
			if err != nil {
				return 0, fmt.Errorf("line %d: %s.%s must be int: %v", lineNo, section, key, err)
			}
			return n, nil
		}

		var err error
		switch cur {
		case db:
			switch key {
			case "host":
				cfg.Database.Host = resolveScalar(val)
			case "port":
				cfg.Database.Port, err = atoi("database")
			case "user":
				cfg.Database.User = resolveScalar(val)
			case "password":
				cfg.Database.Password = resolveScalar(val)
			case "database":
				cfg.Database.Name = resolveScalar(val)
			default:
				return fmt.Errorf("line %d: unknown key in database: %q", lineNo, key)
			}
		case rm:
			switch key {
			case "host":
				cfg.RabbitMQ.Host = resolveScalar(val)
			case "port":
				cfg.RabbitMQ.Port, err = atoi("rabbitmq")
			case "user":
				cfg.RabbitMQ.User = resolveScalar(val)
			case "password":
				cfg.RabbitMQ.Password = resolveScalar(val)
			default:
				return fmt.Errorf("line %d: unknown key in rabbitmq: %q", lineNo, key)
			}
		case rd:
			switch key {
			case "host":
				cfg.Redis.Host = resolveScalar(val)
			case "port":
				cfg.Redis.Port, err = atoi("redis")
			default:
				return fmt.Errorf("line %d: unknown key in redis: %q", lineNo, key)
			}
		case sv:
			switch key {
			case "ride_service":
				cfg.Services.RideServicePort, err = atoi("services")
			case "payment_service":
				cfg.Services.PaymentServicePort, err = atoi("services")
			default:
				return fmt.Errorf("line %d: unknown key in services: %q", lineNo, key)
			}
		case jw:
			switch key {
			case "secret_key":
				cfg.JWT.SecretKey = resolveScalar(val)
			default:
				return fmt.Errorf("line %d: unknown key in jwt: %q", lineNo, key)
			}
		case to:
			switch key {
			case "request_grace_seconds":
				cfg.Timeouts.RequestGraceSeconds, err = atoi("timeouts")
			case "driver_search_seconds":
				cfg.Timeouts.DriverSearchSeconds, err = atoi("timeouts")
			case "driver_arrival_seconds":
				cfg.Timeouts.DriverArrivalSeconds, err = atoi("timeouts")
			case "no_show_seconds":
				cfg.Timeouts.NoShowSeconds, err = atoi("timeouts")
			case "max_ride_duration_seconds":
				cfg.Timeouts.MaxRideDurationSeconds, err = atoi("timeouts")
			case "sweep_interval_seconds":
				cfg.Timeouts.SweepIntervalSeconds, err = atoi("timeouts")
			default:
				return fmt.Errorf("line %d: unknown key in timeouts: %q", lineNo, key)
			}
		case pm:
			switch key {
			case "max_retries":
				cfg.Payments.MaxRetries, err = atoi("payments")
			case "retry_base_seconds":
				cfg.Payments.RetryBaseSeconds, err = atoi("payments")
			case "retry_sweep_seconds":
				cfg.Payments.RetrySweepSeconds, err = atoi("payments")
			case "allow_refund":
				cfg.Payments.AllowRefund = strings.EqualFold(resolveScalar(val), "true")
			case "refund_window_hours":
				cfg.Payments.RefundWindowHours, err = atoi("payments")
			case "max_refund_amount":
				var n int
				n, err = atoi("payments")
				cfg.Payments.MaxRefundAmount = int64(n)
			case "stripe_secret_key":
				cfg.Payments.StripeSecretKey = resolveScalar(val)
			default:
				return fmt.Errorf("line %d: unknown key in payments: %q", lineNo, key)
			}
		}
		if err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	return nil
}

// resolveScalar trims whitespace and removes surrounding quotes from YAML-like scalars.
// For example:
//
//	"localhost"  -> localhost
//	'password123' -> password123
//	localhost     -> localhost
//
// This ensures values like jwt.secret_key are not stored with extra quotes.
func resolveScalar(s string) string {
	s = strings.TrimSpace(s)

	// if value is quoted with "..." or '...', remove quotes safely
	n := len(s)
	if n >= 2 {
		if (s[0] == '"' && s[n-1] == '"') || (s[0] == '\'' && s[n-1] == '\'') {
			if unq, err := strconv.Unquote(s); err == nil {
				return unq
			}
			// fallback if strconv.Unquote fails (e.g., mismatched quotes)
			return s[1 : n-1]
		}
	}

	return s
}
