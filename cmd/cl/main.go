package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"campusline/internal/api"
	"campusline/internal/config"
	"campusline/internal/db"
	"campusline/internal/domain"
	"campusline/internal/engine"
	"campusline/internal/lifecycle"
	"campusline/internal/migrate"
	"campusline/internal/roster"
	"campusline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "cl",
	Short: "Campusline CLI",
	Long: `Campusline is the admin console for a campus activity program.
It manages users, classes, activities, and signups against the campus API,
and renders the signup roster with activity names and resolved user names
joined in. Run 'cl serve' to start the backing API locally.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("CAMPUSLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides campusline.yml)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().Bool("force", false, "force operation")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("api-url", rootCmd.PersistentFlags().Lookup("api-url"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("force", rootCmd.PersistentFlags().Lookup("force"))
}

func registerCommands() {
	rootCmd.AddCommand(activityCmd())
	rootCmd.AddCommand(rosterCmd())
	rootCmd.AddCommand(signupCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(classCmd())
	rootCmd.AddCommand(serveCmd())
}

func activityCmd() *cobra.Command {
	act := &cobra.Command{
		Use:   "activity",
		Short: "Manage activities",
		Long:  "Activities move pending -> active -> completed, with cancelled reachable from pending or active. Use --force to override the graph; the backend stays authoritative.",
	}
	act.AddCommand(activityListCmd())
	act.AddCommand(activityCreateCmd())
	act.AddCommand(activityDeleteCmd())
	act.AddCommand(activitySetStatusCmd())
	return act
}

func activityListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List activities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *api.Client) error {
				activities, err := c.Activities(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(activities)
				}
				renderActivities(activities)
				return nil
			})
		},
	}
}

func activityCreateCmd() *cobra.Command {
	var (
		req         api.CreateActivityRequest
		start, end  string
		signupOpen  string
		signupClose string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if req.StartTime, err = parseTimeFlag(start); err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			if req.EndTime, err = parseTimeFlag(end); err != nil {
				return fmt.Errorf("--end: %w", err)
			}
			if req.SignupStart, err = parseTimeFlag(signupOpen); err != nil {
				return fmt.Errorf("--signup-start: %w", err)
			}
			if req.SignupEnd, err = parseTimeFlag(signupClose); err != nil {
				return fmt.Errorf("--signup-end: %w", err)
			}
			return withClient(cmd.Context(), func(ctx context.Context, c *api.Client) error {
				if err := c.CreateActivity(ctx, req); err != nil {
					return err
				}
				fmt.Println("activity created")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "activity name")
	cmd.Flags().StringVar(&req.Description, "description", "", "description")
	cmd.Flags().StringVar(&req.Location, "location", "", "location")
	cmd.Flags().StringVar(&start, "start", "", "event start (RFC3339)")
	cmd.Flags().StringVar(&end, "end", "", "event end (RFC3339)")
	cmd.Flags().StringVar(&signupOpen, "signup-start", "", "signup window open (RFC3339)")
	cmd.Flags().StringVar(&signupClose, "signup-end", "", "signup window close (RFC3339)")
	cmd.Flags().StringVar(&req.LeaderID, "leader-id", "", "responsible user id")
	cmd.Flags().Float64Var(&req.Budget, "budget", 0, "budget")
	cmd.Flags().IntVar(&req.MaxPeople, "max-people", 0, "signup capacity")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	_ = cmd.MarkFlagRequired("signup-start")
	_ = cmd.MarkFlagRequired("signup-end")
	_ = cmd.MarkFlagRequired("max-people")
	return cmd
}

func activityDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("activity id: %w", err)
			}
			return withClient(cmd.Context(), func(ctx context.Context, c *api.Client) error {
				if err := c.DeleteActivity(ctx, id); err != nil {
					return err
				}
				fmt.Println("activity deleted")
				return nil
			})
		},
	}
}

func activitySetStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "set-status <id>",
		Short: "Change activity status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("activity id: %w", err)
			}
			return withClient(cmd.Context(), func(ctx context.Context, c *api.Client) error {
				activities, err := c.Activities(ctx)
				if err != nil {
					return err
				}
				current, err := findActivity(activities, id)
				if err != nil {
					return err
				}
				refresh := func(ctx context.Context) error {
					updated, err := c.Activities(ctx)
					if err != nil {
						return err
					}
					if viper.GetBool("json") {
						return printJSON(updated)
					}
					renderActivities(updated)
					return nil
				}
				ctrl := lifecycle.New(c, refresh, printNotifier{})
				return ctrl.ChangeStatus(ctx, current, status, viper.GetBool("force"))
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status (pending, active, completed, cancelled)")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func rosterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roster",
		Short: "Show the signup roster",
		Long:  "Fetches activities and signups in parallel, resolves user names through the session cache, and renders one row per signup with placeholders for anything unmatched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *api.Client) error {
				sess := roster.NewSession(c)
				if err := sess.Refresh(ctx); err != nil {
					return err
				}
				rows := sess.Rows()
				if viper.GetBool("json") {
					return printJSON(rows)
				}
				renderRoster(rows)
				return nil
			})
		},
	}
}

func signupCmd() *cobra.Command {
	sign := &cobra.Command{
		Use:   "signup",
		Short: "Manage signups",
	}
	sign.AddCommand(signupAddCmd())
	sign.AddCommand(signupCancelCmd())
	return sign
}

func signupAddCmd() *cobra.Command {
	var activityID int64
	var userID string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Sign a user up for an activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *api.Client) error {
				if err := c.SignUp(ctx, activityID, userID); err != nil {
					return err
				}
				fmt.Println("signed up")
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&activityID, "activity", 0, "activity id")
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	_ = cmd.MarkFlagRequired("activity")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func signupCancelCmd() *cobra.Command {
	var activityID int64
	var userID string
	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel a signup",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *api.Client) error {
				if err := c.CancelSignUp(ctx, activityID, userID); err != nil {
					return err
				}
				fmt.Println("signup cancelled")
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&activityID, "activity", 0, "activity id")
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	_ = cmd.MarkFlagRequired("activity")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func userCmd() *cobra.Command {
	user := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	user.AddCommand(userListCmd())
	user.AddCommand(userRegisterCmd())
	user.AddCommand(userDeleteCmd())
	user.AddCommand(userNameCmd())
	return user
}

func userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *api.Client) error {
				users, err := c.Users(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Role", "Class", "Created"})
				for _, u := range users {
					tw.AppendRow(table.Row{u.UserID, u.Name, u.Role, u.ClassID, u.CreateTime.Format(time.DateTime)})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func userRegisterCmd() *cobra.Command {
	var req api.RegisterRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *api.Client) error {
				if err := c.Register(ctx, req); err != nil {
					return err
				}
				fmt.Println("user registered")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.UserID, "id", "", "user id (generated when omitted)")
	cmd.Flags().StringVar(&req.SchoolNum, "school-num", "", "school number")
	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&req.Password, "password", "", "password")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "phone")
	cmd.Flags().StringVar(&req.Email, "email", "", "email")
	cmd.Flags().StringVar(&req.Role, "role", "", "role")
	cmd.Flags().StringVar(&req.ClassID, "class-id", "", "class id")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func userDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *api.Client) error {
				if err := c.DeleteUser(ctx, args[0]); err != nil {
					return err
				}
				fmt.Println("user deleted")
				return nil
			})
		},
	}
}

func userNameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "name <id>",
		Short: "Resolve a user id to a display name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *api.Client) error {
				name, err := c.UserName(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Println(name)
				return nil
			})
		},
	}
}

func classCmd() *cobra.Command {
	class := &cobra.Command{
		Use:   "class",
		Short: "Manage classes",
	}
	class.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List classes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *api.Client) error {
				classes, err := c.Classes(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(classes)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Grade", "Major", "Members"})
				for _, cl := range classes {
					tw.AppendRow(table.Row{cl.ClassID, cl.ClassName, cl.Grade, cl.Major, cl.MemberCount})
				}
				tw.Render()
				return nil
			})
		},
	})
	return class
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the campus activity API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if basePath == "" {
				basePath = cfg.Server.BasePath
			}
			conn, err := db.Open(workspace)
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			handler, err := server.New(server.Config{Engine: engine.New(conn), BasePath: basePath})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving campus activity API on http://%s%s\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path")
	return cmd
}

// --- helpers ---

type printNotifier struct{}

func (printNotifier) Success(msg string) { fmt.Println(msg) }
func (printNotifier) Error(msg string)   { fmt.Println("error:", msg) }

func withClient(ctx context.Context, fn func(context.Context, *api.Client) error) error {
	cfg, err := config.LoadOptional(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	baseURL := viper.GetString("api-url")
	if baseURL == "" {
		baseURL = cfg.API.BaseURL
	}
	client := api.New(baseURL)
	client.HTTPClient.Timeout = cfg.Timeout()
	return fn(ctx, client)
}

func findActivity(activities []domain.Activity, id int64) (domain.Activity, error) {
	for _, a := range activities {
		if a.ActivityID == id {
			return a, nil
		}
	}
	return domain.Activity{}, fmt.Errorf("activity %d not found", id)
}

func parseTimeFlag(v string) (time.Time, error) {
	return time.Parse(time.RFC3339, v)
}

func renderActivities(activities []domain.Activity) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Name", "Location", "Start", "End", "Status", "Capacity"})
	for _, a := range activities {
		tw.AppendRow(table.Row{
			a.ActivityID, a.Name, a.Location,
			a.StartTime.Format(time.DateTime), a.EndTime.Format(time.DateTime),
			a.Status, a.MaxPeople,
		})
	}
	tw.Render()
}

func renderRoster(rows []domain.RosterRow) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Activity ID", "Activity", "User ID", "User", "Status", "Signed Up"})
	for _, r := range rows {
		tw.AppendRow(table.Row{
			r.ID, r.ActivityID, r.ActivityName, r.UserID, r.UserName,
			r.StatusLabel, r.SignupTime.Format(time.DateTime),
		})
	}
	tw.Render()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
