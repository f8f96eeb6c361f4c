// Command configaudit validates a Bobot docker-compose deployment before it is
// shipped: every service environment must resolve, the bobot service must carry
// the configuration the server refuses to start without, and published host
// ports must not collide.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	bobotServiceName = "bobot"

	environmentKeyApplicationAddress = "APP_ADDR"
	environmentKeyDatabaseDriver     = "DB_DRIVER"
	environmentKeyDatabaseDataSource = "DB_DSN"
	environmentKeyAdminBearerToken   = "ADMIN_BEARER_TOKEN"
	environmentKeyRetentionDays      = "RETENTION_DAYS"

	driverNameSQLite   = "sqlite"
	driverNamePostgres = "postgres"

	interpolationEnvFileName = ".env"
)

var (
	errAuditFailed     = errors.New("config_audit_failed")
	placeholderPattern = regexp.MustCompile(`\$\{([A-Z0-9_]+)\}`)
)

type stringList []string

func (list *stringList) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*list = nil
		return nil
	}
	switch node.Kind {
	case yaml.ScalarNode:
		value := strings.TrimSpace(node.Value)
		if value == "" {
			*list = nil
			return nil
		}
		*list = []string{value}
		return nil
	case yaml.SequenceNode:
		entries := make([]string, 0, len(node.Content))
		for _, child := range node.Content {
			if child == nil {
				continue
			}
			value := strings.TrimSpace(child.Value)
			if value == "" {
				continue
			}
			entries = append(entries, value)
		}
		*list = entries
		return nil
	default:
		return fmt.Errorf("unsupported yaml node kind %d for list", node.Kind)
	}
}

type environmentMap map[string]string

func (environment *environmentMap) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*environment = nil
		return nil
	}
	switch node.Kind {
	case yaml.MappingNode:
		decoded := make(map[string]string)
		if err := node.Decode(&decoded); err != nil {
			return err
		}
		normalized := make(map[string]string, len(decoded))
		for key, value := range decoded {
			normalized[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
		*environment = normalized
		return nil
	case yaml.SequenceNode:
		decoded := make([]string, 0, len(node.Content))
		if err := node.Decode(&decoded); err != nil {
			return err
		}
		normalized := make(map[string]string)
		for _, entry := range decoded {
			trimmed := strings.TrimSpace(entry)
			if trimmed == "" {
				continue
			}
			key, value, ok := strings.Cut(trimmed, "=")
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			if !ok {
				normalized[key] = ""
				continue
			}
			normalized[key] = strings.TrimSpace(value)
		}
		*environment = normalized
		return nil
	default:
		return fmt.Errorf("unsupported yaml node kind %d for environment", node.Kind)
	}
}

type composeFile struct {
	Services map[string]composeService `yaml:"services"`
}

type composeService struct {
	EnvFile     stringList     `yaml:"env_file"`
	Environment environmentMap `yaml:"environment"`
	Ports       stringList     `yaml:"ports"`
	Image       string         `yaml:"image"`
	Build       interface{}    `yaml:"build"`
	Restart     string         `yaml:"restart"`
	Container   string         `yaml:"container_name"`
	OtherKeys   map[string]any `yaml:",inline"`
}

type auditResult struct {
	errors   []string
	warnings []string
}

func (result *auditResult) addError(message string, arguments ...any) {
	result.errors = append(result.errors, fmt.Sprintf(message, arguments...))
}

func (result *auditResult) addWarning(message string, arguments ...any) {
	result.warnings = append(result.warnings, fmt.Sprintf(message, arguments...))
}

func (result auditResult) ok() bool {
	return len(result.errors) == 0
}

func main() {
	result := runAudit("docker-compose.yml")
	sort.Strings(result.errors)
	sort.Strings(result.warnings)

	for _, warning := range result.warnings {
		_, _ = fmt.Fprintf(os.Stdout, "WARN: %s\n", warning)
	}
	for _, errorMessage := range result.errors {
		_, _ = fmt.Fprintf(os.Stderr, "ERROR: %s\n", errorMessage)
	}
	if !result.ok() {
		_, _ = fmt.Fprintf(os.Stderr, "config-audit failed\n")
		os.Exit(1)
	}
	_, _ = fmt.Fprintf(os.Stdout, "config-audit OK\n")
}

func runAudit(composePath string) auditResult {
	var result auditResult

	composeDocument, readErr := os.ReadFile(composePath)
	if readErr != nil {
		result.addError("read compose file %s: %v", composePath, readErr)
		return result
	}

	var compose composeFile
	if decodeErr := yaml.Unmarshal(composeDocument, &compose); decodeErr != nil {
		result.addError("parse compose file %s: %v", composePath, decodeErr)
		return result
	}
	if len(compose.Services) == 0 {
		result.addError("compose file %s: no services defined", composePath)
		return result
	}

	composeDirectory := filepath.Dir(composePath)
	interpolationValues := loadInterpolationEnvironment(composeDirectory, &result)

	environmentByService := make(map[string]map[string]string, len(compose.Services))
	hostPortToService := make(map[string]string)

	for serviceName, service := range compose.Services {
		env, envErr := loadServiceEnvironment(composeDirectory, serviceName, service.EnvFile, service.Environment, &result)
		if envErr != nil {
			result.addError("service %s: %v", serviceName, envErr)
			continue
		}
		environmentByService[serviceName] = env

		checkPlaceholderResolution(serviceName, service.Environment, interpolationValues, &result)
		checkHostPortCollisions(serviceName, service.Ports, hostPortToService, &result)
	}

	checkBobotRequiredEnvironment(environmentByService, &result)

	return result
}

// loadInterpolationEnvironment reads the compose-level .env file used for
// ${VAR} interpolation. A missing file is fine; placeholder checks then run
// against an empty set.
func loadInterpolationEnvironment(composeDirectory string, result *auditResult) map[string]string {
	interpolationPath := filepath.Join(composeDirectory, interpolationEnvFileName)
	if _, statErr := os.Stat(interpolationPath); statErr != nil {
		return map[string]string{}
	}

	values, duplicates, parseErr := parseDotEnv(interpolationPath)
	if parseErr != nil {
		result.addError("parse %s: %v", interpolationEnvFileName, parseErr)
		return map[string]string{}
	}
	for _, duplicate := range duplicates {
		result.addError("%s defines %s more than once", interpolationEnvFileName, duplicate)
	}
	return values
}

func loadServiceEnvironment(composeDirectory string, serviceName string, envFiles []string, environment environmentMap, result *auditResult) (map[string]string, error) {
	merged := make(map[string]string)

	for _, envFile := range envFiles {
		resolvedPath := filepath.Clean(filepath.Join(composeDirectory, envFile))
		if _, statErr := os.Stat(resolvedPath); statErr != nil {
			result.addError("service %s: env_file %s is missing (%v)", serviceName, envFile, statErr)
			continue
		}
		values, duplicates, parseErr := parseDotEnv(resolvedPath)
		if parseErr != nil {
			return nil, fmt.Errorf("parse env_file %s: %w", envFile, parseErr)
		}
		for _, duplicate := range duplicates {
			result.addError("service %s: env_file %s defines %s more than once", serviceName, envFile, duplicate)
		}
		for key, value := range values {
			merged[key] = value
		}
	}

	for key, value := range environment {
		if strings.TrimSpace(key) == "" {
			continue
		}
		merged[key] = value
	}

	if len(merged) == 0 {
		return nil, fmt.Errorf("%w: no environment variables resolved", errAuditFailed)
	}

	return merged, nil
}

func parseDotEnv(path string) (map[string]string, []string, error) {
	file, openErr := os.Open(path)
	if openErr != nil {
		return nil, nil, openErr
	}
	defer func() { _ = file.Close() }()

	entries := make(map[string]string)
	seen := make(map[string]struct{})
	var duplicates []string

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		if _, already := seen[key]; already {
			duplicates = append(duplicates, key)
		}
		seen[key] = struct{}{}
		entries[key] = value
	}
	if scanErr := scanner.Err(); scanErr != nil {
		return nil, nil, scanErr
	}

	sort.Strings(duplicates)
	duplicates = uniqueStrings(duplicates)
	return entries, duplicates, nil
}

// checkPlaceholderResolution verifies that every ${VAR} used in a service's
// inline environment is defined by the compose-level .env file.
func checkPlaceholderResolution(serviceName string, environment environmentMap, interpolationValues map[string]string, result *auditResult) {
	for key, value := range environment {
		for _, match := range placeholderPattern.FindAllStringSubmatch(value, -1) {
			if len(match) < 2 {
				continue
			}
			placeholderName := strings.TrimSpace(match[1])
			if placeholderName == "" {
				continue
			}
			if _, defined := interpolationValues[placeholderName]; !defined {
				result.addError("service %s: %s references ${%s} but %s is not defined in %s", serviceName, key, placeholderName, placeholderName, interpolationEnvFileName)
			}
		}
	}
}

func checkHostPortCollisions(serviceName string, ports []string, hostPortToService map[string]string, result *auditResult) {
	for _, mapping := range ports {
		trimmed := strings.TrimSpace(mapping)
		if trimmed == "" {
			continue
		}
		hostPort, ok := parseHostPort(trimmed)
		if !ok {
			continue
		}
		if existingService, already := hostPortToService[hostPort]; already {
			result.addError("compose: host port %s is published by both %s and %s", hostPort, existingService, serviceName)
		} else {
			hostPortToService[hostPort] = serviceName
		}
	}
}

func parseHostPort(portMapping string) (string, bool) {
	trimmed := strings.Trim(portMapping, `"`)
	parts := strings.Split(trimmed, ":")
	if len(parts) < 2 {
		return "", false
	}
	hostPort := strings.TrimSpace(parts[len(parts)-2])
	if hostPort == "" {
		return "", false
	}
	for _, runeValue := range hostPort {
		if runeValue < '0' || runeValue > '9' {
			return "", false
		}
	}
	return hostPort, true
}

// checkBobotRequiredEnvironment enforces the configuration the server treats
// as mandatory, plus value-shape checks the server only fails on at runtime.
func checkBobotRequiredEnvironment(environmentByService map[string]map[string]string, result *auditResult) {
	bobotEnv, bobotFound := environmentByService[bobotServiceName]
	if !bobotFound {
		result.addError("compose: service %s is not defined", bobotServiceName)
		return
	}

	for _, requiredKey := range []string{environmentKeyDatabaseDataSource, environmentKeyAdminBearerToken} {
		if strings.TrimSpace(bobotEnv[requiredKey]) == "" {
			result.addError("service %s: %s must be set", bobotServiceName, requiredKey)
		}
	}

	driverName := strings.TrimSpace(bobotEnv[environmentKeyDatabaseDriver])
	switch driverName {
	case "", driverNameSQLite, driverNamePostgres:
	default:
		result.addError("service %s: %s must be %s or %s, got %q", bobotServiceName, environmentKeyDatabaseDriver, driverNameSQLite, driverNamePostgres, driverName)
	}

	if retentionValue := strings.TrimSpace(bobotEnv[environmentKeyRetentionDays]); retentionValue != "" && !isPlaceholder(retentionValue) {
		retentionDays, parseErr := strconv.Atoi(retentionValue)
		if parseErr != nil || retentionDays < 0 {
			result.addError("service %s: %s must be a non-negative integer, got %q", bobotServiceName, environmentKeyRetentionDays, retentionValue)
		}
	}

	if addressValue := strings.TrimSpace(bobotEnv[environmentKeyApplicationAddress]); addressValue != "" && !isPlaceholder(addressValue) && !strings.Contains(addressValue, ":") {
		result.addError("service %s: %s must be a host:port listen address, got %q", bobotServiceName, environmentKeyApplicationAddress, addressValue)
	}

	dataSourceName := strings.TrimSpace(bobotEnv[environmentKeyDatabaseDataSource])
	if driverName == driverNamePostgres && (strings.Contains(dataSourceName, "localhost") || strings.Contains(dataSourceName, "127.0.0.1")) {
		result.addWarning("service %s: %s points at localhost, which resolves to the container itself", bobotServiceName, environmentKeyDatabaseDataSource)
	}
}

func isPlaceholder(value string) bool {
	return placeholderPattern.MatchString(value)
}

func uniqueStrings(values []string) []string {
	if len(values) == 0 {
		return values
	}
	sort.Strings(values)
	unique := make([]string, 0, len(values))
	for _, value := range values {
		if len(unique) == 0 || unique[len(unique)-1] != value {
			unique = append(unique, value)
		}
	}
	return unique
}
