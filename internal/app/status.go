package app

import "context"

// Status reports the state of the configuration a project would bootstrap
// without touching disk.
func (s Service) Status(ctx context.Context, req StatusRequest) (StatusResult, error) {
	sess, err := s.newSession(req.Connection, req.Cache)
	if err != nil {
		return StatusResult{}, err
	}
	record, err := resolveRecord(ctx, sess, req.ProjectID, req.ConfigName, req.Namespace, req.FallbackURI)
	if err != nil {
		return StatusResult{}, err
	}
	result := StatusResult{
		Status:      record.Status(),
		InstallRoot: record.InstallRoot(),
		Managed:     record.Managed(),
	}
	if descriptor := record.Descriptor(); descriptor != nil {
		result.URI = descriptor.URI()
	}
	if !record.Managed() {
		if info, err := s.Sidecars.ReadConfigInfo(record.Layout().SidecarDir()); err == nil {
			result.InstalledAt, _ = info.InstalledTime()
		}
	}
	return result, nil
}
