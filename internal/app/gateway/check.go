package gateway

import (
	"fmt"

	"github.com/volkan-m/ssh-mcp-server/internal/model"
)

// Check runs the configuration preflight checks. Checks with error status
// block every transport, warnings don't.
func (s *Service) Check() []model.CheckResult {
	results := []model.CheckResult{}

	if s.target.Host == "" {
		results = append(results, model.CheckResult{
			ID:      "ssh_host",
			Message: "SSH host is not defined, set SSH_HOST or --ssh-host",
			Status:  model.CheckStatusError,
		})
	} else {
		results = append(results, model.CheckResult{
			ID:      "ssh_host",
			Message: fmt.Sprintf("SSH target is %s", s.target),
			Status:  model.CheckStatusOK,
		})
	}

	if err := s.target.Validate(); err != nil && s.target.Host != "" {
		results = append(results, model.CheckResult{
			ID:      "ssh_target",
			Message: err.Error(),
			Status:  model.CheckStatusError,
		})
	}

	results = append(results, s.credentialChecks()...)

	if s.target.InsecureIgnoreHostKey {
		results = append(results, model.CheckResult{
			ID:      "host_key",
			Message: "Host key verification is disabled",
			Status:  model.CheckStatusWarning,
		})
	} else {
		results = append(results, model.CheckResult{
			ID:      "host_key",
			Message: fmt.Sprintf("Host keys are verified against %s", s.target.KnownHostsPath),
			Status:  model.CheckStatusOK,
		})
	}

	count := len(s.matcher.Patterns())
	results = append(results, model.CheckResult{
		ID:      "allowlist",
		Message: fmt.Sprintf("%d command patterns defined in allowlist", count),
		Status:  model.CheckStatusOK,
	})

	return results
}

func (s *Service) credentialChecks() []model.CheckResult {
	info := s.credentials.Inspect()

	switch {
	case !info.Exists:
		return []model.CheckResult{{
			ID:      "key_file",
			Message: fmt.Sprintf("SSH key file not found: %s", info.Path),
			Status:  model.CheckStatusError,
		}}
	case !info.Regular:
		return []model.CheckResult{{
			ID:      "key_file",
			Message: fmt.Sprintf("SSH key path is not a regular file: %s", info.Path),
			Status:  model.CheckStatusError,
		}}
	}

	res := []model.CheckResult{{
		ID:      "key_file",
		Message: fmt.Sprintf("SSH key file exists: %s", info.Path),
		Status:  model.CheckStatusOK,
	}}

	if !info.Secure {
		res = append(res, model.CheckResult{
			ID:      "key_permissions",
			Message: fmt.Sprintf("SSH key file permissions are not secure (%04o), run 'chmod 600 %s'", info.Mode, info.Path),
			Status:  model.CheckStatusError,
		})
	} else {
		res = append(res, model.CheckResult{
			ID:      "key_permissions",
			Message: fmt.Sprintf("SSH key file permissions are %04o", info.Mode),
			Status:  model.CheckStatusOK,
		})
	}

	return res
}

// configError returns the reason of the first blocking check, empty when the
// configuration can be used.
func (s *Service) configError() string {
	for _, c := range s.Check() {
		if c.Status == model.CheckStatusError {
			return c.Message
		}
	}
	return ""
}
