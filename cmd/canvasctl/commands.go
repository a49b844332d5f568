package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"canvas-backend/application/commands"
	"canvas-backend/application/export"
	"canvas-backend/application/queries"
	"canvas-backend/application/services"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/infrastructure/di"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Graph commands",
}

var graphName string

var graphCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an empty graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *di.Container) error {
			result, err := c.CommandBus.Send(ctx, commands.CreateGraphCommand{UserID: userID, Name: graphName})
			if err != nil {
				return err
			}
			g := result.(*aggregates.Graph)
			return printJSON(cmd, map[string]string{"id": g.ID().String(), "name": g.Name()})
		})
	},
}

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Node commands",
}

var (
	nodeGraph string
	nodeType  string
	nodeTitle string
	nodeText  string
)

var nodeCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a node in a graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *di.Container) error {
			payload := map[string]interface{}{}
			if nodeText != "" {
				payload["content"] = nodeText
			}
			result, err := c.CommandBus.Send(ctx, commands.CreateNodeCommand{
				UserID:  userID,
				GraphID: nodeGraph,
				Type:    nodeType,
				Title:   nodeTitle,
				Payload: payload,
			})
			if err != nil {
				return err
			}
			n := result.(*entities.Node)
			return printJSON(cmd, map[string]string{"id": n.ID().String(), "type": n.Type().String()})
		})
	},
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Chat session commands",
}

var (
	sessionGraph string
	sessionNode  string
	sessionTitle string
)

var sessionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Start a chat session, optionally bound to a node",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *di.Container) error {
			result, err := c.CommandBus.Send(ctx, commands.CreateChatSessionCommand{
				UserID:  userID,
				GraphID: sessionGraph,
				NodeID:  sessionNode,
				Title:   sessionTitle,
			})
			if err != nil {
				return err
			}
			s := result.(*entities.ChatSession)
			return printJSON(cmd, map[string]string{"id": s.ID().String()})
		})
	},
}

var (
	messageSession string
	messageRole    string
	messageContent string
)

var sessionAppendCmd = &cobra.Command{
	Use:   "append",
	Short: "Append a message to a session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *di.Container) error {
			result, err := c.CommandBus.Send(ctx, commands.AppendMessageCommand{
				UserID:    userID,
				SessionID: messageSession,
				Role:      messageRole,
				Content:   messageContent,
			})
			if err != nil {
				return err
			}
			m := result.(*entities.ChatMessage)
			return printJSON(cmd, map[string]interface{}{"id": m.ID, "seq": m.Seq})
		})
	},
}

var (
	linkGraph  string
	linkSource string
	linkTarget string
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Connect two nodes and transfer context along the new edge",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *di.Container) error {
			result, err := c.CommandBus.Send(ctx, commands.CreateEdgeWithContextCommand{
				UserID:   userID,
				GraphID:  linkGraph,
				SourceID: linkSource,
				TargetID: linkTarget,
			})
			r, _ := result.(*services.EdgeWithContext)
			if err != nil {
				if r != nil && r.Edge != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "edge %s was created but context transfer failed\n", r.Edge.ID())
				}
				return err
			}
			out := map[string]interface{}{
				"edge_id":  r.Edge.ID().String(),
				"strategy": string(r.Strategy),
				"messages": len(r.Messages),
			}
			if !r.ChatSessionID.IsZero() {
				out["chat_session_id"] = r.ChatSessionID.String()
			}
			if r.Error != "" {
				out["error"] = r.Error
			}
			return printJSON(cmd, out)
		})
	},
}

var (
	exportSession string
	exportFormat  string
	exportOpts    export.ExportOptions
	exportOut     string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Render a chat session as Markdown or a Mermaid diagram",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *di.Container) error {
			result, err := c.QueryBus.Ask(ctx, queries.ExportSessionQuery{
				SessionID: exportSession,
				Format:    exportFormat,
				Options:   exportOpts,
			})
			if err != nil {
				return err
			}
			doc := result.(*export.RenderedDocument)
			if exportOut == "" || exportOut == "-" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), doc.Body)
				return err
			}
			return os.WriteFile(exportOut, []byte(doc.Body), 0o644)
		})
	},
}

func init() {
	graphCreateCmd.Flags().StringVar(&graphName, "name", "", "Graph name")
	graphCmd.AddCommand(graphCreateCmd)

	nodeCreateCmd.Flags().StringVar(&nodeGraph, "graph", "", "Graph ID")
	nodeCreateCmd.Flags().StringVar(&nodeType, "type", "document", "Node type: document, media, chat or website")
	nodeCreateCmd.Flags().StringVar(&nodeTitle, "title", "", "Node title")
	nodeCreateCmd.Flags().StringVar(&nodeText, "text", "", "Text content")
	_ = nodeCreateCmd.MarkFlagRequired("graph")
	nodeCmd.AddCommand(nodeCreateCmd)

	sessionCreateCmd.Flags().StringVar(&sessionGraph, "graph", "", "Graph ID")
	sessionCreateCmd.Flags().StringVar(&sessionNode, "node", "", "Node to bind the session to")
	sessionCreateCmd.Flags().StringVar(&sessionTitle, "title", "", "Session title")
	_ = sessionCreateCmd.MarkFlagRequired("graph")
	sessionAppendCmd.Flags().StringVar(&messageSession, "session", "", "Session ID")
	sessionAppendCmd.Flags().StringVar(&messageRole, "role", "user", "Message role")
	sessionAppendCmd.Flags().StringVarP(&messageContent, "content", "m", "", "Message content")
	_ = sessionAppendCmd.MarkFlagRequired("session")
	sessionCmd.AddCommand(sessionCreateCmd, sessionAppendCmd)

	linkCmd.Flags().StringVar(&linkGraph, "graph", "", "Graph ID")
	linkCmd.Flags().StringVar(&linkSource, "source", "", "Source node ID")
	linkCmd.Flags().StringVar(&linkTarget, "target", "", "Target node ID")
	_ = linkCmd.MarkFlagRequired("graph")
	_ = linkCmd.MarkFlagRequired("source")
	_ = linkCmd.MarkFlagRequired("target")

	exportCmd.Flags().StringVar(&exportSession, "session", "", "Session ID")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "markdown", "markdown or diagram")
	exportCmd.Flags().StringVar(&exportOpts.Title, "title", "", "Document title")
	exportCmd.Flags().IntVar(&exportOpts.MaxMessages, "max-messages", 0, "Keep only the most recent N messages")
	exportCmd.Flags().IntVar(&exportOpts.MaxMessageRunes, "max-message-runes", 0, "Truncate each message to N characters")
	exportCmd.Flags().BoolVar(&exportOpts.AllowEmpty, "allow-empty", false, "Render sessions without messages")
	exportCmd.Flags().StringVar(&exportOpts.Direction, "direction", "", "Diagram direction, TD or LR")
	exportCmd.Flags().BoolVar(&exportOpts.PairMode, "pair", false, "Diagram: one node per question/answer pair")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Write to file instead of stdout")
	_ = exportCmd.MarkFlagRequired("session")
}
