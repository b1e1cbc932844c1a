package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	apiclient "github.com/ederalmeidasantos-byte/sistema-admin/pkg/api/client"
	"golang.org/x/term"
)

type cliConfig struct {
	APIBaseURL  string `json:"api_base_url"`
	AccessToken string `json:"access_token"`
}

const defaultAPIBase = "http://localhost:3000"

var buildVersion = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "login":
		err = commandLogin(args)
	case "ambientes":
		err = commandEnvironments(args)
	case "reconcile":
		err = commandReconcile(args)
	case "sync":
		err = commandSync(args)
	case "processo":
		err = commandProcess(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func commandLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	username := fs.String("user", "", "Username")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	apiBase := fs.String("api", "", "API base URL (default "+defaultAPIBase+")")
	admin := fs.Bool("admin", false, "Authenticate as the administrator")
	fs.Parse(args)

	if strings.TrimSpace(*username) == "" {
		return errors.New("--user is required")
	}

	secret := *password
	if secret == "" {
		fmt.Print("Password: ")
		bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Print("\n")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		secret = string(bytes)
	}

	cfg, _ := loadConfig()
	if strings.TrimSpace(*apiBase) != "" {
		cfg.APIBaseURL = *apiBase
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	var session apiclient.Session
	if *admin {
		session, err = client.LoginAdmin(ctx, *username, secret)
	} else {
		session, err = client.Login(ctx, *username, secret)
	}
	if err != nil {
		return err
	}
	cfg.AccessToken = session.Token
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Printf("login successful (%s)\n", session.Principal.Role)
	return nil
}

// session loads the stored token and a client for it.
func session() (*apiclient.Client, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, "", errors.New("please login first using 'adminctl login'")
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return nil, "", err
	}
	return client, token, nil
}

func commandEnvironments(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: adminctl ambientes [list|create|delete]")
	}
	sub := args[0]
	switch sub {
	case "list":
		return environmentList()
	case "create":
		return environmentCreate(args[1:])
	case "delete":
		return environmentDelete(args[1:])
	default:
		return fmt.Errorf("unknown ambientes command: %s", sub)
	}
}

func environmentList() error {
	client, token, err := session()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	envs, err := client.ListEnvironments(ctx, token)
	if err != nil {
		return err
	}
	for _, env := range envs {
		state := "ativo"
		if !env.Active {
			state = "inativo"
		}
		fmt.Printf("%s\t%d\t%s\t%s\t%s\n", env.ID, env.Port, env.Name, state, strings.Join(env.Integrations, ","))
	}
	return nil
}

func environmentCreate(args []string) error {
	fs := flag.NewFlagSet("ambientes create", flag.ExitOnError)
	name := fs.String("name", "", "Environment name")
	port := fs.Int("port", 0, "Environment port")
	owner := fs.String("owner", "", "Owner username")
	ownerPassword := fs.String("owner-password", "", "Owner password (supply to avoid prompt)")
	banks := fs.String("bancos", "", "Comma separated integration ids")
	fs.Parse(args)

	if strings.TrimSpace(*name) == "" || *port <= 0 || strings.TrimSpace(*owner) == "" {
		return errors.New("--name, --port and --owner are required")
	}
	secret := *ownerPassword
	if secret == "" {
		fmt.Print("Owner password: ")
		bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Print("\n")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		secret = string(bytes)
	}

	client, token, err := session()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := client.Provision(ctx, token, apiclient.ProvisionInput{
		Name:          *name,
		Port:          *port,
		OwnerUser:     *owner,
		OwnerPassword: secret,
		Integrations:  splitList(*banks),
	})
	if err != nil {
		return err
	}
	fmt.Printf("created %s on port %d (%s)\n", result.Environment.ID, result.Environment.Port, result.Environment.Directory)
	printUnits(result.Materialization.Results)
	return nil
}

func environmentDelete(args []string) error {
	fs := flag.NewFlagSet("ambientes delete", flag.ExitOnError)
	id := fs.String("id", "", "Environment identifier")
	fs.Parse(args)
	if strings.TrimSpace(*id) == "" {
		return errors.New("--id is required")
	}

	client, token, err := session()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	warning, err := client.DeleteEnvironment(ctx, token, *id)
	if err != nil {
		return err
	}
	if warning != "" {
		fmt.Printf("warning: %s\n", warning)
	}
	fmt.Println("deleted")
	return nil
}

func commandReconcile(args []string) error {
	client, token, err := session()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	report, err := client.Reconcile(ctx, token)
	if err != nil {
		return err
	}
	fmt.Printf("detected %d, created %d, updated %d, deactivated %d\n", report.Detected, len(report.Created), len(report.Updated), len(report.Deactivated))
	for _, env := range report.Created {
		fmt.Printf("  created %s on port %d\n", env.Name, env.Port)
	}
	return nil
}

func commandSync(args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	id := fs.String("id", "", "Environment identifier (omit to sync every active environment)")
	bank := fs.String("banco", "", "Single integration to sync")
	fs.Parse(args)

	client, token, err := session()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	switch {
	case strings.TrimSpace(*id) == "":
		if *bank != "" {
			return errors.New("--banco requires --id")
		}
		report, err := client.SyncAll(ctx, token)
		if err != nil {
			return err
		}
		for _, env := range report.Environments {
			fmt.Printf("port %d\n", env.Port)
			printUnits(env.Results)
		}
	case strings.TrimSpace(*bank) != "":
		result, err := client.SyncIntegration(ctx, token, *id, *bank)
		if err != nil {
			return err
		}
		printUnits([]apiclient.UnitResult{result})
	default:
		report, err := client.SyncEnvironment(ctx, token, *id)
		if err != nil {
			return err
		}
		printUnits(report.Results)
	}
	return nil
}

func commandProcess(args []string) error {
	fs := flag.NewFlagSet("processo", flag.ExitOnError)
	id := fs.String("id", "", "Environment identifier")
	action := fs.String("acao", "", "start|stop|restart (omit for status)")
	fs.Parse(args)
	if strings.TrimSpace(*id) == "" {
		return errors.New("--id is required")
	}

	client, token, err := session()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	status, err := client.Process(ctx, token, *id, *action)
	if err != nil {
		return err
	}
	fmt.Printf("port %d running=%t\n", status.Port, status.Running)
	return nil
}

func printUnits(units []apiclient.UnitResult) {
	for _, unit := range units {
		state := "ok"
		switch {
		case unit.Skipped:
			state = "skipped"
		case !unit.Success:
			state = "error: " + unit.Error
		}
		fmt.Printf("  %s\t%s\t%d files\t%s\n", unit.Kind, unit.Name, unit.Files, state)
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func loadConfig() (cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cliConfig{APIBaseURL: defaultAPIBase}, nil
		}
		return cliConfig{}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBase
	}
	return cfg, nil
}

func saveConfig(cfg cliConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func configPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "sistema-admin", "config.json"), nil
}

func printUsage() {
	fmt.Printf("adminctl %s\n\n", buildVersion)
	fmt.Print(`Usage:
	adminctl login --user <name> [--admin] [--password secret] [--api ` + defaultAPIBase + `]
	adminctl ambientes list
	adminctl ambientes create --name <name> --port <port> --owner <user> [--owner-password secret] [--bancos alpha,bravo]
	adminctl ambientes delete --id <environment-id>
	adminctl reconcile
	adminctl sync [--id <environment-id> [--banco <integration>]]
	adminctl processo --id <environment-id> [--acao start|stop|restart]
	adminctl version
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}
