package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func main() {
	base := os.Getenv("FLOWHQ_SMOKE_URL")
	if base == "" {
		base = "http://localhost:4500"
	}
	grpcAddr := os.Getenv("FLOWHQ_SMOKE_GRPC_ADDR")
	if grpcAddr == "" {
		grpcAddr = "localhost:4501"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client := &http.Client{Timeout: 5 * time.Second}

	email := fmt.Sprintf("smoke-%s@flowhq.dev", uuid.NewString()[:8])
	password := "smoke-" + uuid.NewString()

	var reg tokens
	mustPost(ctx, client, base+"/api/auth/register", map[string]string{
		"email": email, "firstName": "Smoke", "lastName": "Test", "password": password,
	}, "", http.StatusCreated, &reg)

	var login tokens
	mustPost(ctx, client, base+"/api/auth/login", map[string]string{
		"email": email, "password": password,
	}, "", http.StatusOK, &login)

	var rotated tokens
	mustPost(ctx, client, base+"/api/auth/refresh", map[string]string{
		"refreshToken": login.RefreshToken,
	}, "", http.StatusOK, &rotated)

	// The redeemed token must be dead now.
	mustPost(ctx, client, base+"/api/auth/refresh", map[string]string{
		"refreshToken": login.RefreshToken,
	}, "", http.StatusUnauthorized, nil)

	var me map[string]any
	mustPost(ctx, client, base+"/api/auth/me", nil, rotated.AccessToken, http.StatusOK, &me)
	if me["email"] != email {
		log.Fatalf("profile mismatch: %v", me["email"])
	}

	mustPost(ctx, client, base+"/api/auth/logout-all", nil, rotated.AccessToken, http.StatusOK, nil)
	mustPost(ctx, client, base+"/api/auth/refresh", map[string]string{
		"refreshToken": reg.RefreshToken,
	}, "", http.StatusUnauthorized, nil)

	conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("dial grpc at %s: %v", grpcAddr, err)
	}
	defer conn.Close()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		log.Fatalf("grpc health: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		log.Fatalf("grpc health status %v", resp.GetStatus())
	}

	fmt.Printf("auth smoke test passed: user=%s\n", email)
}

func mustPost(ctx context.Context, client *http.Client, url string, body any, bearer string, want int, out any) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			log.Fatalf("marshal %s: %v", url, err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("request %s: %v", url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		log.Fatalf("POST %s: expected %d, got %d", url, want, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Fatalf("decode %s: %v", url, err)
		}
	}
}
