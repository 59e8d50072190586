package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/gobang-online/game/room"
	"github.com/wricardo/gobang-online/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Gobang Online",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Gobang Online - MCP Interface

Read-only view of the lobby: who is online, which rooms exist, who sits where
and what the board looks like. This is a thin client over the REST API.

AVAILABLE TOOLS:
- list_users: Signed-in users with their scores and rooms
- list_rooms: Every live room with its status and players
- room_info: One room in detail, including the board
- room_users: Members of one room with their seats
- game_rules: How a game is played`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_users",
		Description: "List every signed-in user with score and joined rooms",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListUsers)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rooms",
		Description: "List every live room with status, players and move count",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListRooms)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "room_info",
		Description: "Show one room: seats, readiness, turn, observers and the current board",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room": map[string]interface{}{
					"type":        "string",
					"description": "Room name",
				},
			},
			Required: []string{"room"},
		},
	}, c.handleRoomInfo)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "room_users",
		Description: "List the members of one room with their role and score",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room": map[string]interface{}{
					"type":        "string",
					"description": "Room name",
				},
			},
			Required: []string{"room"},
		},
	}, c.handleRoomUsers)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_rules",
		Description: "Explain how rooms, seats, readiness and moves work",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameRules)
}

// GetMCPServer returns the underlying MCP server
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// apiCall performs a REST call and decodes the JSON response into result
func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Tool handlers

func (c *Client) handleListUsers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var users []service.UserInfo
	if err := c.apiCall(ctx, "GET", "/api/users", nil, &users); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatUsers(users)), nil
}

func (c *Client) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var rooms []room.Snapshot
	if err := c.apiCall(ctx, "GET", "/api/rooms", nil, &rooms); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatRooms(rooms)), nil
}

func (c *Client) handleRoomInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, ok := roomArgument(request)
	if !ok {
		return mcp.NewToolResultError("room is required"), nil
	}

	var info service.RoomInfo
	if err := c.apiCall(ctx, "GET", "/api/rooms/"+url.PathEscape(name), nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatRoomInfo(&info)), nil
}

func (c *Client) handleRoomUsers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, ok := roomArgument(request)
	if !ok {
		return mcp.NewToolResultError("room is required"), nil
	}

	var members []service.MemberInfo
	if err := c.apiCall(ctx, "GET", "/api/rooms/"+url.PathEscape(name)+"/users", nil, &members); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatMembers(name, members)), nil
}

func (c *Client) handleGameRules(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rules := fmt.Sprintf(`Gobang Online - Rules

ROOMS:
- Opening /room/<name> joins that room; the room is created on first visit
  and disappears when its last member leaves.
- The first two arrivals take the player1 and player2 seats while the room
  is waiting. Everybody else watches as an observer.

STARTING A GAME:
- Each player sends "user start". The game starts only when both seats are
  filled and both players are ready. A new game clears the board.

MOVES:
- Players alternate, player1 first, with "user click" at (x, y).
- Coordinates run from %d to %d on a %dx%d board; anything else is
  rejected with "click out of range".
- Observers can only watch.

LEAVING:
- If a player leaves during a game, the game is abandoned: the room goes
  back to waiting and both players must ready up again.`, room.MinCoord, room.MaxCoord, room.BoardSize, room.BoardSize)

	return mcp.NewToolResultText(rules), nil
}

// roomArgument reads the required room argument.
func roomArgument(request mcp.CallToolRequest) (string, bool) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return "", false
	}
	name, _ := args["room"].(string)
	return name, name != ""
}

func formatUsers(users []service.UserInfo) string {
	if len(users) == 0 {
		return "No users online."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d user(s) online:\n", len(users))
	for _, u := range users {
		where := "lobby"
		if len(u.Rooms) > 0 {
			where = strings.Join(u.Rooms, ", ")
		}
		fmt.Fprintf(&b, "- %s (score %d) in %s\n", u.Username, u.Score, where)
	}
	return b.String()
}

func formatRooms(rooms []room.Snapshot) string {
	if len(rooms) == 0 {
		return "No rooms."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d room(s):\n", len(rooms))
	for _, r := range rooms {
		fmt.Fprintf(&b, "- %s [%s] %s vs %s, %d move(s), %d observer(s)\n",
			r.Name, r.Status, seat(r.Player1), seat(r.Player2), len(r.Moves), len(r.Observers))
	}
	return b.String()
}

func formatRoomInfo(info *service.RoomInfo) string {
	r := info.Room

	var b strings.Builder
	fmt.Fprintf(&b, "Room: %s\n", r.Name)
	fmt.Fprintf(&b, "Status: %s\n", r.Status)
	fmt.Fprintf(&b, "Player1: %s (%s)\n", seat(r.Player1), r.Player1Status)
	fmt.Fprintf(&b, "Player2: %s (%s)\n", seat(r.Player2), r.Player2Status)
	if r.Status == room.Started {
		fmt.Fprintf(&b, "Turn: player%d\n", r.Turn+1)
	}
	if len(r.Observers) > 0 {
		fmt.Fprintf(&b, "Observers: %s\n", strings.Join(r.Observers, ", "))
	}
	b.WriteString("\n")
	b.WriteString(formatBoard(r.Moves))
	return b.String()
}

func formatMembers(name string, members []service.MemberInfo) string {
	if len(members) == 0 {
		return fmt.Sprintf("Room %s has no members.", name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Room %s:\n", name)
	for _, m := range members {
		fmt.Fprintf(&b, "- %s: %s (score %d)\n", m.Role, m.Username, m.Score)
	}
	return b.String()
}

// formatBoard draws the board with X for player1 stones and O for player2.
// Row y=1 is printed first.
func formatBoard(moves []room.Move) string {
	var grid [room.BoardSize][room.BoardSize]byte
	for y := range grid {
		for x := range grid[y] {
			grid[y][x] = '.'
		}
	}
	for _, m := range moves {
		if !room.InRange(m.X, m.Y) {
			continue
		}
		stone := byte('X')
		if m.Color == room.ColorP2 {
			stone = 'O'
		}
		grid[m.Y-1][m.X-1] = stone
	}

	var b strings.Builder
	b.WriteString("    ")
	for x := 1; x <= room.BoardSize; x++ {
		fmt.Fprintf(&b, "%2d", x)
	}
	b.WriteString("\n")
	for y := range grid {
		fmt.Fprintf(&b, "%2d  ", y+1)
		for x := range grid[y] {
			b.WriteByte(' ')
			b.WriteByte(grid[y][x])
		}
		b.WriteString("\n")
	}
	return b.String()
}

func seat(identity string) string {
	if identity == "" {
		return "(empty)"
	}
	return identity
}
