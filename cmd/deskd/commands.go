package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/deskd/internal/config"
)

type recommendation struct {
	AgentID            string   `json:"agentId"`
	Name               string   `json:"name"`
	Email              string   `json:"email"`
	RelevanceScore     float64  `json:"relevanceScore"`
	Reasoning          string   `json:"reasoning"`
	MatchingQueries    []string `json:"matchingQueries"`
	TotalSolvedQueries int      `json:"totalSolvedQueries"`
}

func printRecommendations(recs []recommendation) {
	if len(recs) == 0 {
		fmt.Println("No recommendations.")
		return
	}
	for i, r := range recs {
		fmt.Printf("\n%s %s <%s> [score: %.2f]\n",
			colorize(colorBold, fmt.Sprintf("%d.", i+1)), r.Name, r.Email, r.RelevanceScore)
		if r.Reasoning != "" {
			fmt.Printf("   %s\n", r.Reasoning)
		}
		if len(r.MatchingQueries) > 0 {
			fmt.Printf("   Matches: %s\n", strings.Join(r.MatchingQueries, "; "))
		}
	}
}

// --- recommend ---

var recommendCmd = &cobra.Command{
	Use:   "recommend <question>",
	Short: "Rank support agents for a question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		topN, _ := cmd.Flags().GetInt("top")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]any{"question": question, "topN": topN}
		resp, err := client.post(cmd.Context(), "/api/users/priority-analysis", body)
		if err != nil {
			return err
		}

		var result struct {
			Question        string           `json:"question"`
			TopN            int              `json:"topN"`
			Recommendations []recommendation `json:"recommendations"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printRecommendations(result.Recommendations)
		return nil
	},
}

func init() {
	recommendCmd.Flags().Int("top", 5, "maximum number of agents to return")
}

// --- expertise ---

var expertiseCmd = &cobra.Command{
	Use:   "expertise",
	Short: "Show each agent's expertise domain and solved-query history",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/users/expertise")
		if err != nil {
			return err
		}

		var agents []struct {
			UserID          string   `json:"userId"`
			Name            string   `json:"name"`
			ExpertiseDomain string   `json:"expertiseDomain"`
			SolvedQueries   []string `json:"solvedQueries"`
		}
		if err := decodeJSON(resp, &agents); err != nil {
			return err
		}

		if len(agents) == 0 {
			fmt.Println("No agents found.")
			return nil
		}

		for _, a := range agents {
			fmt.Printf("\n%s (%s)\n", colorize(colorBold, a.Name), a.ExpertiseDomain)
			for _, q := range a.SolvedQueries {
				fmt.Printf("  - %s\n", q)
			}
		}
		return nil
	},
}

// --- ticket ---

var ticketCmd = &cobra.Command{
	Use:   "ticket",
	Short: "Manage support tickets",
}

type ticketView struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	Priority   int       `json:"priority"`
	CreatedBy  string    `json:"createdBy"`
	AssignedTo string    `json:"assignedTo"`
	CreatedAt  time.Time `json:"createdAt"`
}

var ticketCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new ticket",
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		description, _ := cmd.Flags().GetString("description")
		creator, _ := cmd.Flags().GetString("creator")
		category, _ := cmd.Flags().GetString("category")

		if title == "" || description == "" || creator == "" {
			return fmt.Errorf("--title, --description, and --creator are required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]any{
			"title":       title,
			"description": description,
			"createdBy":   creator,
		}
		if category != "" {
			body["categoryId"] = category
		}

		resp, err := client.post(cmd.Context(), "/api/tickets", body)
		if err != nil {
			return err
		}

		var ticket ticketView
		if err := decodeJSON(resp, &ticket); err != nil {
			return err
		}

		printSuccess("Created ticket %s (priority %d)", ticket.ID, ticket.Priority)
		return nil
	},
}

var ticketListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tickets",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		assignee, _ := cmd.Flags().GetString("assignee")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		q := url.Values{}
		if status != "" {
			q.Set("status", status)
		}
		if assignee != "" {
			q.Set("assignee", assignee)
		}
		path := "/api/tickets"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}

		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var tickets []ticketView
		if err := decodeJSON(resp, &tickets); err != nil {
			return err
		}

		if len(tickets) == 0 {
			fmt.Println("No tickets found.")
			return nil
		}

		for _, t := range tickets {
			title := t.Title
			if len(title) > 60 {
				title = title[:60] + "..."
			}
			assigned := t.AssignedTo
			if assigned == "" {
				assigned = "-"
			}
			fmt.Printf("%s  %-11s  P%d  %-10s  %s\n",
				colorize(colorCyan, t.ID[:8]), t.Status, t.Priority, assigned, title)
		}
		return nil
	},
}

var ticketShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single ticket as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/tickets/"+args[0])
		if err != nil {
			return err
		}

		var ticket any
		if err := decodeJSON(resp, &ticket); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ticket)
	},
}

var ticketAssignCmd = &cobra.Command{
	Use:   "assign <ticket-id> <agent-id>",
	Short: "Assign a ticket to an agent",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]any{"agentId": args[1]}
		resp, err := client.post(cmd.Context(), "/api/tickets/"+args[0]+"/assign", body)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Assigned ticket to %s", result["assignedTo"])
		return nil
	},
}

var ticketRecommendCmd = &cobra.Command{
	Use:   "recommend <id>",
	Short: "Rank agents for an existing ticket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topN, _ := cmd.Flags().GetInt("top")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/api/tickets/%s/recommendations?top_n=%d", args[0], topN)
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var result struct {
			Recommendations []recommendation `json:"recommendations"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printRecommendations(result.Recommendations)
		return nil
	},
}

var ticketSummaryCmd = &cobra.Command{
	Use:   "summary <id>",
	Short: "Summarize a ticket and its attachment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/tickets/"+args[0]+"/summary")
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result["summary"])
		return nil
	},
}

func init() {
	ticketCreateCmd.Flags().String("title", "", "ticket title")
	ticketCreateCmd.Flags().String("description", "", "ticket description")
	ticketCreateCmd.Flags().String("creator", "", "ID of the user opening the ticket")
	ticketCreateCmd.Flags().String("category", "", "category ID")
	ticketListCmd.Flags().String("status", "", "filter by status")
	ticketListCmd.Flags().String("assignee", "", "filter by assigned agent ID")
	ticketRecommendCmd.Flags().Int("top", 5, "maximum number of agents to return")

	ticketCmd.AddCommand(ticketCreateCmd)
	ticketCmd.AddCommand(ticketListCmd)
	ticketCmd.AddCommand(ticketShowCmd)
	ticketCmd.AddCommand(ticketAssignCmd)
	ticketCmd.AddCommand(ticketRecommendCmd)
	ticketCmd.AddCommand(ticketSummaryCmd)
}

// --- users ---

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage users and agents",
}

var usersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		role, _ := cmd.Flags().GetString("role")
		domain, _ := cmd.Flags().GetString("domain")
		tagsStr, _ := cmd.Flags().GetString("expertise")

		if name == "" || email == "" {
			return fmt.Errorf("--name and --email are required")
		}

		body := map[string]any{"name": name, "email": email}
		if role != "" {
			body["role"] = role
		}
		if domain != "" {
			body["expertiseDomain"] = domain
		}
		if tagsStr != "" {
			tags := strings.Split(tagsStr, ",")
			for i := range tags {
				tags[i] = strings.TrimSpace(tags[i])
			}
			body["expertise"] = tags
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/users", body)
		if err != nil {
			return err
		}

		var result map[string]any
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Created user %v", result["id"])
		return nil
	},
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users by role",
	RunE: func(cmd *cobra.Command, args []string) error {
		role, _ := cmd.Flags().GetString("role")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/users?role="+url.QueryEscape(role))
		if err != nil {
			return err
		}

		var users []struct {
			ID              string `json:"id"`
			Name            string `json:"name"`
			Email           string `json:"email"`
			Role            string `json:"role"`
			ExpertiseDomain string `json:"expertiseDomain"`
		}
		if err := decodeJSON(resp, &users); err != nil {
			return err
		}

		if len(users) == 0 {
			fmt.Println("No users found.")
			return nil
		}

		for _, u := range users {
			domain := u.ExpertiseDomain
			if domain == "" {
				domain = "-"
			}
			fmt.Printf("%s  %-6s  %-24s  %s\n",
				colorize(colorCyan, u.ID[:8]), u.Role, u.Name, domain)
		}
		return nil
	},
}

func init() {
	usersAddCmd.Flags().String("name", "", "display name")
	usersAddCmd.Flags().String("email", "", "email address")
	usersAddCmd.Flags().String("role", "", "role (User, Agent, or Admin)")
	usersAddCmd.Flags().String("domain", "", "expertise domain label")
	usersAddCmd.Flags().String("expertise", "", "comma-separated expertise tags")
	usersListCmd.Flags().String("role", "Agent", "role to list")

	usersCmd.AddCommand(usersAddCmd)
	usersCmd.AddCommand(usersListCmd)
}

// --- notifications ---

var notificationsCmd = &cobra.Command{
	Use:   "notifications <user-id>",
	Short: "List a user's notifications",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/notifications?user="+url.QueryEscape(args[0]))
		if err != nil {
			return err
		}

		var notes []struct {
			ID        string `json:"id"`
			Kind      string `json:"kind"`
			Message   string `json:"message"`
			Read      bool   `json:"read"`
			CreatedAt string `json:"createdAt"`
		}
		if err := decodeJSON(resp, &notes); err != nil {
			return err
		}

		if len(notes) == 0 {
			fmt.Println("No notifications.")
			return nil
		}

		for _, n := range notes {
			marker := colorize(colorYellow, "*")
			if n.Read {
				marker = " "
			}
			fmt.Printf("%s %s  %-10s  %s\n", marker, n.CreatedAt, n.Kind, n.Message)
		}
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
