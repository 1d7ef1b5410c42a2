package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mideliberto/jira-mcp/internal/application"
	"github.com/mideliberto/jira-mcp/internal/credential"
	"github.com/mideliberto/jira-mcp/internal/domain"
	"github.com/mideliberto/jira-mcp/internal/infrastructure"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	checkConnection := flag.Bool("check-connection", false, "Verify Jira credentials and exit")
	storeCredentials := flag.Bool("store-credentials", false, "Store credentials from JIRA_* environment variables into the system keyring and exit")
	flag.Parse()

	// Pick up a .env next to the binary when present; absence is fine.
	_ = godotenv.Load()

	if *storeCredentials {
		if err := storeCredentialsFromEnv(); err != nil {
			log.Fatalf("Failed to store credentials: %v", err)
		}
		log.Println("Credentials stored in keyring")
		return
	}

	log.Printf("Loading configuration from: %s", *configPath)
	config, err := domain.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Println("Configuration loaded successfully")

	creds, err := credential.Load(config.Jira.Credentials)
	if err != nil {
		log.Fatalf("Failed to load credentials: %v", err)
	}
	// Config wins for the base URL when both are set.
	if config.Jira.BaseURL != "" {
		creds.BaseURL = config.Jira.BaseURL
	}
	if !creds.Valid() {
		log.Fatal("Incomplete Jira credentials: base URL, email and API token are all required")
	}

	fieldTable, err := config.BuildFieldTable()
	if err != nil {
		log.Fatalf("Invalid field mappings: %v", err)
	}

	httpClient := domain.NewAuthenticatedClient(creds)
	jiraClient := infrastructure.NewJiraClient(creds.BaseURL, httpClient)

	if *checkConnection {
		user, err := jiraClient.Myself()
		if err != nil {
			log.Fatalf("Connection check failed: %v", err)
		}
		fmt.Printf("Connected to %s as %s (%s)\n", creds.BaseURL, user.DisplayName, user.EmailAddress)
		return
	}

	mapper := domain.NewResponseMapper()
	jiraHandler := application.NewJiraHandler(jiraClient, mapper, fieldTable)
	router := application.NewRequestRouter(jiraHandler)
	log.Println("Jira handler registered")

	var transport domain.Transport
	switch config.Transport.Type {
	case "stdio":
		log.Println("Initializing stdio transport")
		transport = domain.NewStdioTransport()
	case "http":
		log.Printf("Initializing HTTP transport on %s:%d", config.Transport.HTTP.Host, config.Transport.HTTP.Port)
		transport = domain.NewHTTPTransport(config.Transport.HTTP.Host, config.Transport.HTTP.Port)
	default:
		log.Fatalf("Invalid transport type: %s", config.Transport.Type)
	}

	server := application.NewServer(transport, router, config)
	log.Println("MCP server created")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	errChan := make(chan error, 1)
	go func() {
		log.Println("Starting MCP server...")
		if err := server.Start(ctx); err != nil {
			errChan <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	if config.Transport.Type == "stdio" {
		log.Println("MCP server started successfully (stdio transport)")
	} else {
		log.Printf("MCP server started successfully (HTTP transport on %s:%d)",
			config.Transport.HTTP.Host, config.Transport.HTTP.Port)
	}

	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
		log.Println("Initiating graceful shutdown...")
		cancel()
	case err := <-errChan:
		log.Printf("Server error: %v", err)
		cancel()
		if err := server.Close(); err != nil {
			log.Printf("Error closing server: %v", err)
		}
		os.Exit(1)
	}

	log.Println("Closing server...")
	if err := server.Close(); err != nil {
		log.Printf("Error during server shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server shutdown complete")
}

// storeCredentialsFromEnv reads JIRA_BASE_URL, JIRA_EMAIL and
// JIRA_API_TOKEN and persists them in the system keyring.
func storeCredentialsFromEnv() error {
	creds := &domain.Credentials{
		BaseURL:  os.Getenv(credential.EnvBaseURL),
		Email:    os.Getenv(credential.EnvEmail),
		APIToken: os.Getenv(credential.EnvAPIToken),
	}
	return credential.Store(creds)
}
