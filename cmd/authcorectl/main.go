package main

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/authcore/internal/security/password"
	tokens "github.com/dropDatabas3/authcore/internal/security/token"
)

type client struct {
	BaseURL   string
	APIKey    string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("X-Admin-API-Key", c.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func main() {
	var (
		baseURL = envOr("AUTHCORE_ADMIN_URL", "http://localhost:8080")
		apiKey  = envOr("AUTHCORE_ADMIN_KEY", "")
		out     = envOr("AUTHCORE_OUT", "text")
		timeout = 30 * time.Second
	)

	root := &cobra.Command{
		Use:   "authcorectl",
		Short: "CLI operativa de authcore (via /v1/admin)",
	}

	root.PersistentFlags().StringVar(&baseURL, "admin-api-url", baseURL, "URL base del Admin API (env AUTHCORE_ADMIN_URL)")
	root.PersistentFlags().StringVar(&apiKey, "admin-api-key", apiKey, "API key del Admin API (env AUTHCORE_ADMIN_KEY)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	httpClient := &http.Client{Timeout: timeout}
	cl := &client{BaseURL: baseURL, APIKey: apiKey, OutFormat: out, HTTP: httpClient}

	requireKey := func(cmd *cobra.Command, args []string) error {
		cl.BaseURL, cl.APIKey, cl.OutFormat = baseURL, apiKey, out
		if cl.APIKey == "" {
			return fmt.Errorf("falta API key (flag --admin-api-key o env AUTHCORE_ADMIN_KEY)")
		}
		return nil
	}

	// sweep: borra filas expiradas (refresh tokens y device codes)
	sweepCmd := &cobra.Command{
		Use:     "sweep",
		Short:   "Barre filas expiradas (refresh tokens y device codes)",
		PreRunE: requireKey,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("POST", "/v1/admin/sweep", nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("sweep fallo: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}

	// revoke-user: revoca todas las sesiones de un sujeto
	var revokeUserID string
	revokeCmd := &cobra.Command{
		Use:     "revoke-user",
		Short:   "Revoca todos los refresh tokens de un sujeto",
		PreRunE: requireKey,
		RunE: func(cmd *cobra.Command, args []string) error {
			if revokeUserID == "" {
				return fmt.Errorf("--user es requerido")
			}
			status, body, err := cl.do("POST", "/v1/admin/users/"+revokeUserID+"/tokens/revoke", nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("revoke-user fallo: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	revokeCmd.Flags().StringVar(&revokeUserID, "user", "", "ID del sujeto")

	// hash-key: genera el hash argon2id para ADMIN_API_KEY_HASH
	hashKeyCmd := &cobra.Command{
		Use:   "hash-key [api-key]",
		Short: "Genera el hash argon2id de una admin API key (para ADMIN_API_KEY_HASH)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				// Sin argumento: generar una key nueva y mostrarla una sola vez
				k, err := tokens.GenerateOpaqueToken(32)
				if err != nil {
					return err
				}
				key = k
				fmt.Printf("api_key=%s\n", key)
			}
			phc, err := password.Hash(password.Default, key)
			if err != nil {
				return err
			}
			fmt.Printf("ADMIN_API_KEY_HASH=%s\n", phc)
			return nil
		},
	}

	// keygen: genera las claves que la config espera en prod
	keygenCmd := &cobra.Command{
		Use:   "keygen",
		Short: "Genera JWT_ED25519_SEED y TOKEN_HASH_KEY (base64 de 32 bytes)",
		RunE: func(cmd *cobra.Command, args []string) error {
			seed := make([]byte, 32)
			if _, err := rand.Read(seed); err != nil {
				return err
			}
			hashKey := make([]byte, 32)
			if _, err := rand.Read(hashKey); err != nil {
				return err
			}
			fmt.Printf("JWT_ED25519_SEED=%s\n", base64.StdEncoding.EncodeToString(seed))
			fmt.Printf("TOKEN_HASH_KEY=%s\n", base64.StdEncoding.EncodeToString(hashKey))
			return nil
		},
	}

	root.AddCommand(sweepCmd)
	root.AddCommand(revokeCmd)
	root.AddCommand(hashKeyCmd)
	root.AddCommand(keygenCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
