// export_neo4j_dataset.go
// Exports a Neo4j graph to a vegvisir YAML dataset.
//
// Usage: go run scripts/export_neo4j_dataset.go [output.yaml]
//
// Prerequisites:
//   - Neo4j reachable over HTTP (default http://localhost:7474)
//   - NEO4J_HTTP_URL / NEO4J_USER / NEO4J_PASS override the defaults
//
// The output file loads with: vegvisir load output.yaml

package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/orneryd/vegvisir/pkg/storage"
)

var (
	neo4jHTTPURL = envOr("NEO4J_HTTP_URL", "http://localhost:7474")
	neo4jUser    = envOr("NEO4J_USER", "neo4j")
	neo4jPass    = envOr("NEO4J_PASS", "password")

	// Keeps a runaway export bounded.
	exportLimit = envOr("NEO4J_EXPORT_LIMIT", "100000")
)

func main() {
	output := "dataset.yaml"
	if len(os.Args) > 1 {
		output = os.Args[1]
	}

	fmt.Printf("📥 Step 1: Fetching nodes from %s...\n", neo4jHTTPURL)
	nodes, err := fetchNodes()
	if err != nil {
		fmt.Printf("   ❌ Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("   ✓ Fetched %d nodes\n", len(nodes))

	fmt.Println("📥 Step 2: Fetching relationships...")
	edges, err := fetchEdges()
	if err != nil {
		fmt.Printf("   ❌ Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("   ✓ Fetched %d relationships\n", len(edges))

	fmt.Printf("📤 Step 3: Writing %s...\n", output)
	ds := storage.Dataset{Nodes: nodes, Edges: edges}
	data, err := yaml.Marshal(&ds)
	if err != nil {
		fmt.Printf("   ❌ Error: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		fmt.Printf("   ❌ Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Exported %d nodes, %d edges\n", len(nodes), len(edges))
	fmt.Printf("   Load with: vegvisir load %s\n", output)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func basicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

// runStatement POSTs one Cypher statement to the transaction endpoint and
// returns the raw rows.
func runStatement(statement string) ([][]any, error) {
	query := map[string]any{
		"statements": []map[string]any{
			{"statement": statement},
		},
	}

	body, _ := json.Marshal(query)
	req, _ := http.NewRequest("POST", neo4jHTTPURL+"/db/neo4j/tx/commit", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", basicAuth(neo4jUser, neo4jPass))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("neo4j connection failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("neo4j status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Results []struct {
			Data []struct {
				Row []any `json:"row"`
			} `json:"data"`
		} `json:"results"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("neo4j error: %s", result.Errors[0].Message)
	}

	var rows [][]any
	if len(result.Results) > 0 {
		for _, d := range result.Results[0].Data {
			rows = append(rows, d.Row)
		}
	}
	return rows, nil
}

func fetchNodes() ([]storage.DatasetNode, error) {
	stmt := fmt.Sprintf(
		"MATCH (n) RETURN id(n), labels(n), properties(n) LIMIT %s", exportLimit)
	rows, err := runStatement(stmt)
	if err != nil {
		return nil, err
	}

	var nodes []storage.DatasetNode
	for _, row := range rows {
		if len(row) < 3 {
			continue
		}
		labels, _ := row[1].([]any)
		props, _ := row[2].(map[string]any)

		labelStrs := make([]string, len(labels))
		for i, l := range labels {
			labelStrs[i] = fmt.Sprintf("%v", l)
		}

		nodes = append(nodes, storage.DatasetNode{
			ID:         fmt.Sprintf("n%v", row[0]),
			Labels:     labelStrs,
			Properties: props,
		})
	}
	return nodes, nil
}

func fetchEdges() ([]storage.DatasetEdge, error) {
	stmt := fmt.Sprintf(
		"MATCH (a)-[r]->(b) RETURN id(r), id(a), id(b), type(r), properties(r) LIMIT %s", exportLimit)
	rows, err := runStatement(stmt)
	if err != nil {
		return nil, err
	}

	var edges []storage.DatasetEdge
	for _, row := range rows {
		if len(row) < 5 {
			continue
		}
		props, _ := row[4].(map[string]any)

		edges = append(edges, storage.DatasetEdge{
			ID:         fmt.Sprintf("r%v", row[0]),
			From:       fmt.Sprintf("n%v", row[1]),
			To:         fmt.Sprintf("n%v", row[2]),
			Type:       fmt.Sprintf("%v", row[3]),
			Properties: props,
		})
	}
	return edges, nil
}
