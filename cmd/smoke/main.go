package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
)

func main() {
	baseURL := os.Getenv("ATAG_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	// Wait for server to start
	time.Sleep(2 * time.Second)

	fmt.Println("Starting smoke test...")

	textID := uuid.NewString()

	fmt.Println("1. Creating text...")
	if _, ok := send(baseURL, http.MethodPost, "/texts", map[string]interface{}{
		"uuid": textID,
		"text": "here's a comma, in this text",
	}, http.StatusCreated); !ok {
		fmt.Println("FAILED: Create text")
		os.Exit(1)
	}
	fmt.Println("PASSED: Create text")

	fmt.Println("2. Building full chain...")
	if _, ok := send(baseURL, http.MethodPost, "/texts/"+textID+"/chains", nil, http.StatusOK); !ok {
		fmt.Println("FAILED: Full chain")
		os.Exit(1)
	}
	fmt.Println("PASSED: Full chain")

	fmt.Println("3. Exporting token chain...")
	body, ok := send(baseURL, http.MethodGet, "/texts/"+textID+"/chains/NEXT_TOKEN", nil, http.StatusOK)
	if !ok {
		fmt.Println("FAILED: Export")
		os.Exit(1)
	}
	var doc struct {
		Graph struct {
			Nodes map[string]json.RawMessage `json:"nodes"`
		} `json:"graph"`
	}
	if err := json.Unmarshal(body, &doc); err != nil || len(doc.Graph.Nodes) != 15 {
		fmt.Printf("FAILED: Export returned %d nodes (err=%v), want 15\n", len(doc.Graph.Nodes), err)
		os.Exit(1)
	}
	fmt.Println("PASSED: Export")

	fmt.Println("4. Replacing a character range...")
	if _, ok := send(baseURL, http.MethodPost, "/chains/update", map[string]interface{}{
		"anchor": textID,
		"elements": []map[string]interface{}{
			{"uuid": uuid.NewString(), "text": "H"},
			{"uuid": uuid.NewString(), "text": "i"},
		},
	}, http.StatusOK); !ok {
		fmt.Println("FAILED: Update")
		os.Exit(1)
	}
	fmt.Println("PASSED: Update")
}

func send(baseURL, method, endpoint string, payload interface{}, want int) ([]byte, bool) {
	var body io.Reader
	if payload != nil {
		jsonBytes, _ := json.Marshal(payload)
		body = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, baseURL+endpoint, body)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		return nil, false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return nil, false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != want {
		fmt.Printf("Request failed with status %d: %s\n", resp.StatusCode, string(respBody))
		return nil, false
	}
	fmt.Printf("Response: %s\n", string(respBody))
	return respBody, true
}
