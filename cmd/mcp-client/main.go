package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	flag.Parse()
	args := flag.Args()

	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: mcp-client <server-command> [<args>]")
		fmt.Fprintln(os.Stderr, "Example: mcp-client ./procwatch -mcp")
		os.Exit(2)
	}

	ctx := context.Background()

	// Start the server as a subprocess
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stderr = os.Stderr
	transport := &mcp.CommandTransport{Command: cmd}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "procwatch-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer session.Close()

	fmt.Println("Connected to procwatch MCP Server!")
	printUsage()

	// Interactive REPL
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		switch parts[0] {
		case "/exit":
			fmt.Println("Goodbye!")
			return

		case "/tools":
			listTools(ctx, session)

		case "/view":
			callTool(ctx, session, "get_process_view", map[string]any{})

		case "/filter":
			callTool(ctx, session, "set_filter", map[string]any{
				"text": strings.TrimSpace(strings.TrimPrefix(input, "/filter")),
			})

		case "/sort":
			if len(parts) < 2 {
				fmt.Println("usage: /sort <column>")
				continue
			}
			callTool(ctx, session, "toggle_sort", map[string]any{"column": parts[1]})

		case "/column":
			if len(parts) < 2 {
				fmt.Println("usage: /column <column>")
				continue
			}
			callTool(ctx, session, "toggle_column", map[string]any{"column": parts[1]})

		case "/page":
			args := map[string]any{"page": intArg(parts, 1, 1)}
			if len(parts) > 2 {
				args["page_size"] = intArg(parts, 2, 0)
			}
			callTool(ctx, session, "set_page", args)

		case "/select":
			if len(parts) < 2 {
				fmt.Println("usage: /select <pid>")
				continue
			}
			callTool(ctx, session, "toggle_selection", map[string]any{"pid": intArg(parts, 1, 0)})

		case "/clear":
			callTool(ctx, session, "clear_selection", map[string]any{})

		case "/host":
			callTool(ctx, session, "get_host_info", map[string]any{})

		case "/ticks":
			args := map[string]any{}
			if len(parts) > 1 {
				args["limit"] = intArg(parts, 1, 0)
			}
			callTool(ctx, session, "get_recent_ticks", args)

		case "/history":
			if len(parts) < 2 {
				fmt.Println("usage: /history <pid> [limit]")
				continue
			}
			args := map[string]any{"pid": intArg(parts, 1, 0)}
			if len(parts) > 2 {
				args["limit"] = intArg(parts, 2, 0)
			}
			callTool(ctx, session, "get_process_history", args)

		case "/top":
			args := map[string]any{}
			if len(parts) > 1 {
				args["metric"] = parts[1]
			}
			if len(parts) > 2 {
				args["window_minutes"] = intArg(parts, 2, 0)
			}
			if len(parts) > 3 {
				args["limit"] = intArg(parts, 3, 0)
			}
			callTool(ctx, session, "get_top_processes", args)

		default:
			printUsage()
		}
	}

	if err := scanner.Err(); err != nil {
		log.Printf("Scanner error: %v", err)
	}
}

func printUsage() {
	fmt.Println("Available commands:")
	fmt.Println("  /tools                          - List available tools")
	fmt.Println("  /view                           - Show the current page")
	fmt.Println("  /filter [text]                  - Filter by process name")
	fmt.Println("  /sort <column>                  - Sort by name, pid, cpu, memory, disk or network")
	fmt.Println("  /column <column>                - Hide or show a column")
	fmt.Println("  /page <n> [size]                - Go to page n")
	fmt.Println("  /select <pid>                   - Select or deselect a process")
	fmt.Println("  /clear                          - Clear the selection")
	fmt.Println("  /host                           - Describe the watched machine")
	fmt.Println("  /ticks [limit]                  - Recent recorded ticks")
	fmt.Println("  /history <pid> [limit]          - Recorded samples for a PID")
	fmt.Println("  /top [metric] [minutes] [limit] - Heaviest process names")
	fmt.Println("  /exit                           - Exit the client")
	fmt.Println()
}

func intArg(parts []string, i, def int) int {
	if i >= len(parts) {
		return def
	}
	n, err := strconv.Atoi(parts[i])
	if err != nil {
		fmt.Printf("not a number: %q\n", parts[i])
		return def
	}
	return n
}

func listTools(ctx context.Context, session *mcp.ClientSession) {
	fmt.Println("Available Tools:")
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			log.Printf("Error listing tools: %v", err)
			return
		}
		fmt.Printf("  - %s: %s\n", tool.Name, tool.Description)
	}
	fmt.Println()
}

func callTool(ctx context.Context, session *mcp.ClientSession, toolName string, args map[string]any) {
	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      toolName,
		Arguments: args,
	})
	if err != nil {
		log.Printf("Error calling tool: %v", err)
		return
	}

	printResult(result)
}

func printResult(result *mcp.CallToolResult) {
	if result.IsError {
		fmt.Printf("❌ Error: ")
	} else {
		fmt.Printf("✅ Result: ")
	}

	if result.StructuredContent != nil && !result.IsError {
		if data, err := json.MarshalIndent(result.StructuredContent, "", "  "); err == nil {
			fmt.Println(string(data))
			fmt.Println()
			return
		}
	}

	for _, content := range result.Content {
		switch v := content.(type) {
		case *mcp.TextContent:
			fmt.Println(v.Text)
		default:
			jsonData, err := json.MarshalIndent(content, "", "  ")
			if err != nil {
				fmt.Printf("%+v\n", content)
			} else {
				fmt.Println(string(jsonData))
			}
		}
	}
	fmt.Println()
}
