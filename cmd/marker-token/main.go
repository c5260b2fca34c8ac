package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/go-read-marker/internal/config"
	jwtinfra "github.com/go-read-marker/internal/infrastructure/jwt"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	app := cli.NewApp()
	app.Name = "marker-token"
	app.Usage = "Mint a bearer token for the read-marker control API"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:  "subject",
			Value: "window-bridge",
			Usage: "caller name recorded in the token",
		},
		&cli.StringFlag{
			Name:  "scopes",
			Value: jwtinfra.ScopeWindow + "," + jwtinfra.ScopeStatus,
			Usage: "comma separated scopes (window, status)",
		},
	}
	app.Action = mint

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func mint(c *cli.Context) error {
	cfg := config.Load()
	p, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return err
	}

	var scopes []string
	for _, s := range strings.Split(c.String("scopes"), ",") {
		switch s = strings.TrimSpace(s); s {
		case "":
		case jwtinfra.ScopeWindow, jwtinfra.ScopeStatus:
			scopes = append(scopes, s)
		default:
			return fmt.Errorf("unknown scope %q", s)
		}
	}

	token, err := p.Sign(c.String("subject"), scopes...)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
