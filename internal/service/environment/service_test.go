package environment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/detector"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/dirsync"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/domain"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/envfile"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/partner"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository/memory"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/store"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/workspace"
	"github.com/ederalmeidasantos-byte/sistema-admin/pkg/config"
)

const templateCredentials = `# credenciais do template
PORT=4000
NODE_ENV=production
ALPHA_LOGIN=alpha-template
ALPHA_PASSWORD=alpha-secret
ALPHA_ADMIN_TOKEN=root
BRAVO_USUARIO=bravo-template
BRAVO_SENHA=bravo-secret
CONFIANCA_CLIENT_ID=conf-template
CONFIANCA_CLIENT_SECRET=conf-secret
`

type stubVerifier struct {
	result partner.VerifyResult
	err    error
	calls  int
}

func (s *stubVerifier) Verify(ctx context.Context, integrationID, login, password string, envVars map[string]string) (partner.VerifyResult, error) {
	s.calls++
	return s.result, s.err
}

type fixture struct {
	svc    Service
	store  *store.Store
	layout *workspace.Manager
	det    *detector.Detector
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func newFixture(t *testing.T, verifier Verifier) fixture {
	t.Helper()
	log := testLogger()
	layout, err := workspace.New(t.TempDir(), "ambiente", "app")
	if err != nil {
		t.Fatalf("workspace: %v", err)
	}
	template := layout.PortPath(4000)
	for _, dir := range []string{"alpha", "bravo", "confiança"} {
		writeFile(t, filepath.Join(template, dir, "index.js"), "module.exports = '"+dir+"'\n")
		writeFile(t, filepath.Join(template, dir, filepath.FromSlash(dirsync.CredentialFile)), templateCredentials)
		writeFile(t, filepath.Join(template, dir, "node_modules", "dep", "index.js"), "dep")
	}
	writeFile(t, filepath.Join(template, "shared", "helpers.js"), "helpers")
	writeFile(t, filepath.Join(template, ".env"), "PORT=4000\n")

	cfg := config.AdminConfig{
		AdminPort:    3000,
		TemplatePort: 4000,
		PortMin:      4001,
		PortMax:      6000,
		SharedDirs:   []string{"shared", "utils"},
	}
	st := store.New(memory.New(), log)
	svc := New(st, layout, dirsync.New(log), verifier, log, cfg)
	return fixture{svc: svc, store: st, layout: layout, det: detector.New(layout, cfg.AdminPort, log)}
}

func (f fixture) provision(t *testing.T, name string, port int, integrations ...string) ProvisionResult {
	t.Helper()
	result, err := f.svc.Provision(context.Background(), ProvisionInput{
		Name:          name,
		Port:          port,
		OwnerUser:     "dono",
		OwnerPassword: "segredo",
		Integrations:  integrations,
	})
	if err != nil {
		t.Fatalf("provision %s: %v", name, err)
	}
	return result
}

func TestProvisionAndSyncCopiesOnlyPermittedIntegration(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	result := f.provision(t, "QA", 5005, "alpha")
	if result.Materialization.Failures() != 0 {
		t.Fatalf("unexpected materialization failures: %+v", result.Materialization)
	}

	report, err := f.svc.SyncEnvironment(ctx, result.Environment.ID)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if report.Failures() != 0 {
		t.Fatalf("unexpected sync failures: %+v", report)
	}

	root := f.layout.PortPath(5005)
	if got := readFile(t, filepath.Join(root, "alpha", "index.js")); got != "module.exports = 'alpha'\n" {
		t.Fatalf("unexpected alpha content %q", got)
	}
	creds := readFile(t, filepath.Join(root, "alpha", filepath.FromSlash(dirsync.CredentialFile)))
	for _, line := range strings.Split(strings.TrimSpace(creds), "\n") {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.HasPrefix(line, "ALPHA_") && !strings.HasPrefix(line, "PORT") && !strings.HasPrefix(line, "NODE_ENV") {
			t.Fatalf("foreign key leaked into alpha credentials: %q", line)
		}
		if strings.HasPrefix(line, "ALPHA_ADMIN_") {
			t.Fatalf("dropped key kept: %q", line)
		}
	}
	if !strings.Contains(creds, "ALPHA_LOGIN=alpha-template") {
		t.Fatalf("alpha credentials missing: %q", creds)
	}
	for _, absent := range []string{"bravo", "confiança", filepath.Join("alpha", "node_modules")} {
		if _, err := os.Stat(filepath.Join(root, absent)); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected %s absent, err=%v", absent, err)
		}
	}
	if readFile(t, filepath.Join(root, "shared", "helpers.js")) != "helpers" {
		t.Fatalf("shared directory not copied")
	}
	if !strings.Contains(readFile(t, filepath.Join(root, ".env")), "PORT=5005") {
		t.Fatalf("base credential file missing port")
	}
	skipped := false
	for _, unit := range report.Results {
		if unit.Name == "utils" && unit.Skipped {
			skipped = true
		}
	}
	if !skipped {
		t.Fatalf("expected missing shared dir to be skipped: %+v", report.Results)
	}
}

func TestSyncOverwritesChangedTemplateFiles(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	env := f.provision(t, "QA", 5005, "alpha").Environment
	writeFile(t, filepath.Join(f.layout.PortPath(4000), "alpha", "index.js"), "v2")
	writeFile(t, filepath.Join(f.layout.PortPath(5005), "alpha", "node_modules", "local.js"), "local")

	unit, err := f.svc.SyncOne(ctx, env.ID, "alpha")
	if err != nil || !unit.Success {
		t.Fatalf("sync one: %+v err=%v", unit, err)
	}
	if readFile(t, filepath.Join(f.layout.PortPath(5005), "alpha", "index.js")) != "v2" {
		t.Fatalf("expected updated file")
	}
	if readFile(t, filepath.Join(f.layout.PortPath(5005), "alpha", "node_modules", "local.js")) != "local" {
		t.Fatalf("expected environment-local dependencies kept")
	}
}

func TestSyncOneRejectsIntegrationOutsidePermittedSet(t *testing.T) {
	f := newFixture(t, nil)
	env := f.provision(t, "QA", 5005, "alpha").Environment
	if _, err := f.svc.SyncOne(context.Background(), env.ID, "bravo"); !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.layout.PortPath(5005), "bravo")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("bravo must not be copied")
	}
}

func TestProvisionRejectsUsedPortWithoutChanges(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	first := f.provision(t, "QA", 5005, "alpha").Environment
	_, err := f.svc.Provision(ctx, ProvisionInput{Name: "Outro", Port: 5005, OwnerUser: "x", OwnerPassword: "y", Integrations: []string{"bravo"}})
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	envs, err := f.svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(envs) != 1 || envs[0].ID != first.ID || len(envs[0].Integrations) != 1 {
		t.Fatalf("existing environment changed: %+v", envs)
	}
	if _, err := os.Stat(filepath.Join(f.layout.PortPath(5005), "bravo")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("conflicting provision must not touch the directory")
	}
}

func TestProvisionValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	cases := []ProvisionInput{
		{Name: "baixa", Port: 80, OwnerUser: "a", OwnerPassword: "b"},
		{Name: "alta", Port: 7000, OwnerUser: "a", OwnerPassword: "b"},
		{Name: "banco", Port: 5001, OwnerUser: "a", OwnerPassword: "b", Integrations: []string{"delta"}},
	}
	for _, input := range cases {
		if _, err := f.svc.Provision(ctx, input); !errors.Is(err, repository.ErrInvalidArgument) {
			t.Fatalf("expected validation error for %+v, got %v", input, err)
		}
	}
}

func TestReconcileNeverOverwritesConfiguredIntegrations(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	configured := f.provision(t, "Configurado", 5005, "bravo").Environment
	// on disk it now also carries alpha, which detection would infer
	writeFile(t, filepath.Join(f.layout.PortPath(5005), "alpha", "index.js"), "x")

	empty := f.provision(t, "Vazio", 5006).Environment
	writeFile(t, filepath.Join(f.layout.PortPath(5006), "confiança", "index.js"), "x")

	gone := f.provision(t, "Sumido", 5007, "alpha").Environment
	if err := os.RemoveAll(f.layout.PortPath(5007)); err != nil {
		t.Fatalf("remove: %v", err)
	}
	writeFile(t, filepath.Join(f.layout.PortPath(5008), "alpha", "index.js"), "x")

	report, err := f.svc.Reconcile(ctx, f.det)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	got, err := f.svc.Get(ctx, configured.ID)
	if err != nil {
		t.Fatalf("get configured: %v", err)
	}
	if len(got.Integrations) != 1 || got.Integrations[0] != "bravo" {
		t.Fatalf("configured integrations overwritten: %v", got.Integrations)
	}
	got, err = f.svc.Get(ctx, empty.ID)
	if err != nil {
		t.Fatalf("get empty: %v", err)
	}
	if len(got.Integrations) != 1 || got.Integrations[0] != "confianca" {
		t.Fatalf("expected empty set filled from disk, got %v", got.Integrations)
	}
	got, err = f.svc.Get(ctx, gone.ID)
	if err != nil {
		t.Fatalf("deactivated environment must not be deleted: %v", err)
	}
	if got.Active {
		t.Fatalf("expected missing environment deactivated")
	}
	if len(report.Created) != 2 {
		t.Fatalf("expected template and 5008 created, got %+v", report.Created)
	}
	created, err := f.store.GetEnvironmentByPort(ctx, 5008)
	if err != nil {
		t.Fatalf("get created: %v", err)
	}
	user, _ := DefaultCredentials(5008)
	if created.OwnerUser != user || !created.Active || created.Directory != "ambiente-5008-app" {
		t.Fatalf("unexpected created record %+v", created)
	}

	again, err := f.svc.Reconcile(ctx, f.det)
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if len(again.Created) != 0 || len(again.Deactivated) != 0 {
		t.Fatalf("second reconcile must be stable, got %+v", again)
	}
	doc, err := f.store.Get(ctx)
	if err != nil || doc.LastSync == nil {
		t.Fatalf("expected last sync recorded, err=%v", err)
	}
}

func TestReconcileKeepsTemplateActive(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.svc.Reconcile(ctx, f.det); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if err := os.RemoveAll(f.layout.PortPath(4000)); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := f.svc.Reconcile(ctx, f.det); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	template, err := f.store.GetEnvironmentByPort(ctx, 4000)
	if err != nil {
		t.Fatalf("get template: %v", err)
	}
	if !template.Active {
		t.Fatalf("template must stay active")
	}
}

func TestUpdateCredentialVerification(t *testing.T) {
	verifier := &stubVerifier{result: partner.VerifyResult{Success: false, Details: "rejected"}}
	f := newFixture(t, verifier)
	ctx := context.Background()
	env := f.provision(t, "QA", 5005, "alpha").Environment
	envPath := filepath.Join(f.layout.PortPath(5005), ".env")
	before := readFile(t, envPath)
	login, password := "novo", "s3nha#forte"

	_, err := f.svc.UpdateCredential(ctx, env.ID, "alpha", envfile.Credential{Login: &login, Password: &password}, true)
	if !errors.Is(err, repository.ErrVerificationFailed) {
		t.Fatalf("expected verification failure, got %v", err)
	}
	if readFile(t, envPath) != before {
		t.Fatalf("rejected credential must not be written")
	}

	verifier.result, verifier.err = partner.VerifyResult{}, errors.New("connection refused")
	if _, err := f.svc.UpdateCredential(ctx, env.ID, "alpha", envfile.Credential{Login: &login, Password: &password}, true); !errors.Is(err, repository.ErrVerificationFailed) {
		t.Fatalf("infrastructure errors must count as failed verification, got %v", err)
	}

	verifier.result, verifier.err = partner.VerifyResult{Success: true}, nil
	update, err := f.svc.UpdateCredential(ctx, env.ID, "alpha", envfile.Credential{Login: &login, Password: &password}, true)
	if err != nil || update.Verification == nil || !update.Verification.Success {
		t.Fatalf("expected verified update, got %+v err=%v", update, err)
	}
	cred, err := f.svc.GetCredential(ctx, env.ID, "alpha")
	if err != nil {
		t.Fatalf("get credential: %v", err)
	}
	if cred.Login == nil || *cred.Login != login || cred.Password == nil || *cred.Password != password {
		t.Fatalf("unexpected credential %+v", cred)
	}
	if !strings.HasPrefix(readFile(t, envPath), before) {
		t.Fatalf("existing lines must be preserved")
	}

	calls := verifier.calls
	only := "so-login"
	if _, err := f.svc.UpdateCredential(ctx, env.ID, "alpha", envfile.Credential{Login: &only}, true); err != nil {
		t.Fatalf("partial update: %v", err)
	}
	if verifier.calls != calls {
		t.Fatalf("verification requires both fields")
	}
	if _, err := f.svc.UpdateCredential(ctx, env.ID, "bravo", envfile.Credential{Login: &only}, false); !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := f.svc.UpdateCredential(ctx, env.ID, "alpha", envfile.Credential{}, false); !errors.Is(err, repository.ErrInvalidArgument) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteRemovesRecordThenDirectory(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	env := f.provision(t, "QA", 5005, "alpha").Environment

	result, err := f.svc.Delete(ctx, env.ID)
	if err != nil || result.Warning != "" {
		t.Fatalf("delete: %+v err=%v", result, err)
	}
	if f.layout.Exists(env.Directory) {
		t.Fatalf("directory should be removed")
	}
	if _, err := f.svc.Get(ctx, env.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	other := f.provision(t, "Outro", 5006).Environment
	if err := os.RemoveAll(f.layout.PortPath(5006)); err != nil {
		t.Fatalf("remove: %v", err)
	}
	result, err = f.svc.Delete(ctx, other.ID)
	if err != nil || result.Warning == "" {
		t.Fatalf("expected success with warning, got %+v err=%v", result, err)
	}
}

func TestDeleteRefusesTemplate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.svc.Reconcile(ctx, f.det); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	template, err := f.store.GetEnvironmentByPort(ctx, 4000)
	if err != nil {
		t.Fatalf("get template: %v", err)
	}
	if _, err := f.svc.Delete(ctx, template.ID); !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestSyncAllActiveSkipsInactive(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.provision(t, "A", 5005, "alpha")
	inactive := f.provision(t, "B", 5006, "bravo").Environment
	off := false
	if _, err := f.svc.Update(ctx, inactive.ID, store.EnvironmentPatch{Active: &off}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	bulk, err := f.svc.SyncAllActive(ctx)
	if err != nil {
		t.Fatalf("sync all: %v", err)
	}
	if len(bulk.Environments) != 1 || bulk.Environments[0].Port != 5005 {
		t.Fatalf("unexpected bulk report %+v", bulk)
	}
}

type countingReconciler struct {
	calls atomic.Int32
}

func (c *countingReconciler) Reconcile(ctx context.Context, det Detector) (ReconcileReport, error) {
	c.calls.Add(1)
	return ReconcileReport{}, nil
}

type emptyDetector struct{}

func (emptyDetector) Detect(ctx context.Context) []domain.DetectedEnvironment { return nil }

func TestWatcherReconcilesAfterDirectoryChange(t *testing.T) {
	root := t.TempDir()
	rec := &countingReconciler{}
	w := NewWatcher(root, rec, emptyDetector{}, WithWatchDebounce(50*time.Millisecond), WithWatchLogger(testLogger()))
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	if err := os.Mkdir(filepath.Join(root, "ambiente-5005-app"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for rec.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if rec.calls.Load() == 0 {
		t.Fatalf("expected a reconcile after the base path changed")
	}
}
