package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/noah-isme/qr-attend-api/internal/models"
	"github.com/noah-isme/qr-attend-api/internal/token"
)

type outcome struct {
	Status int
	Code   string
}

type counters struct {
	mu     sync.Mutex
	byCode map[string]int
}

func (c *counters) add(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byCode[code]++
}

func main() {
	var (
		base     string
		secret   string
		session  string
		devices  int
		students int
		timeout  time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080/api/v1", "API base URL")
	flag.StringVar(&secret, "secret", "change-me-too", "scan token signing secret")
	flag.StringVar(&session, "session", "", "session ID to bind against (required)")
	flag.IntVar(&devices, "devices", 4, "number of concurrent scanner devices")
	flag.IntVar(&students, "students", 50, "number of simulated students")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	if session == "" {
		log.Fatal("-session is required")
	}

	codec := token.NewCodec(secret, true)
	sessionPayload, err := codec.EncodeSession(session, time.Now().UTC())
	if err != nil {
		log.Fatalf("failed to encode session token: %v", err)
	}

	identities := make([]string, 0, students)
	for i := 0; i < students; i++ {
		payload, err := codec.EncodeIdentity(models.IdentityToken{
			StudentID:   fmt.Sprintf("sim-student-%03d", i),
			RollNumber:  fmt.Sprintf("%d", i+1),
			DisplayName: fmt.Sprintf("Simulated Student %d", i),
		})
		if err != nil {
			log.Fatalf("failed to encode identity token: %v", err)
		}
		identities = append(identities, payload)
	}

	client := &http.Client{Timeout: timeout}
	results := &counters{byCode: make(map[string]int)}
	work := make(chan string, len(identities))
	for _, id := range identities {
		work <- id
	}
	close(work)

	start := time.Now()
	var wg sync.WaitGroup
	for d := 0; d < devices; d++ {
		device := fmt.Sprintf("sim-device-%02d", d)
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := post(client, base+"/scan/bind", device, map[string]string{"payload": sessionPayload})
			if err != nil {
				results.add("transport_error")
				log.Printf("%s: bind failed: %v", device, err)
				return
			}
			if out.Status != http.StatusOK {
				results.add("bind_" + out.Code)
				return
			}
			for payload := range work {
				out, err := post(client, base+"/scan", device, map[string]string{"payload": payload})
				if err != nil {
					results.add("transport_error")
					continue
				}
				if out.Status == http.StatusCreated {
					results.add("accepted")
				} else {
					results.add(out.Code)
				}
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Printf("simulated %d students across %d devices in %s\n", students, devices, elapsed.Round(time.Millisecond))
	results.mu.Lock()
	defer results.mu.Unlock()
	for code, n := range results.byCode {
		fmt.Printf("  %-28s %d\n", code, n)
	}
}

func post(client *http.Client, url, device string, body interface{}) (*outcome, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Device-ID", device)

	res, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	code := "ok"
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error != nil {
		code = envelope.Error.Code
	}
	return &outcome{Status: res.StatusCode, Code: code}, nil
}
