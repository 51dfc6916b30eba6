package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/anicoll/fritzhome-integration/cmd"
	"github.com/anicoll/fritzhome-integration/pkg/hasher"
)

const jwtSecretBytes = 32

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("could not load .env: %v", err)
	}

	app := &cli.App{
		Name:   "fritzhome-integration",
		Usage:  "bridge for AVM FRITZ!SmartHome devices",
		Action: cmd.FritzCommand,
		Flags:  cmd.Flags(),
		Commands: []*cli.Command{
			{
				Name:      "hash-password",
				Usage:     "print the API_PASSWORD_HASH for a password and a fresh API_JWT_SECRET",
				ArgsUsage: "<password>",
				Action:    hashPassword,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func hashPassword(ctx *cli.Context) error {
	password := ctx.Args().First()
	if password == "" {
		return errors.New("password argument is required")
	}
	hash, err := hasher.HashPassword([]byte(password))
	if err != nil {
		return err
	}
	secret, err := hasher.GenerateToken(jwtSecretBytes)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.App.Writer, "API_PASSWORD_HASH='%s'\nAPI_JWT_SECRET='%s'\n", hash, secret)
	return nil
}
