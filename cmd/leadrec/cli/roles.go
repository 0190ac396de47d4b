package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/niveshya/leadops/internal/admin"
	"github.com/niveshya/leadops/internal/rbac"
)

// RolesOptions configures the roles command.
type RolesOptions struct {
	// Action is one of list, permissions, create, update, delete, assign, unassign, user.
	Action      string
	RoleID      string
	UserID      string
	Name        string
	Description string
	Color       string
	Permissions []string
	// Set records which optional update fields were given on the command line.
	Set        map[string]bool
	JSONOutput bool
}

// Roles runs one role-management action through the admin console.
func (e *Env) Roles(ctx context.Context, opts RolesOptions) int {
	if e.Console == nil {
		return e.failf("roles", fmt.Errorf("console not configured"))
	}
	switch opts.Action {
	case "", "list":
		roles, err := e.Console.Roles(ctx)
		if err != nil {
			return e.failf("roles list", err)
		}
		return e.printRoles(roles, opts.JSONOutput)
	case "permissions":
		perms, err := e.Console.Permissions(ctx)
		if err != nil {
			return e.failf("roles permissions", err)
		}
		return e.printPermissions(perms, opts.JSONOutput)
	case "create":
		if strings.TrimSpace(opts.Name) == "" {
			return e.usagef("roles create", "--name is required")
		}
		req := rbac.CreateRoleRequest{Name: opts.Name, Permissions: opts.Permissions}
		if opts.Description != "" {
			req.Description = &opts.Description
		}
		if opts.Color != "" {
			req.Color = &opts.Color
		}
		role, err := e.Console.CreateRole(ctx, req)
		if err != nil {
			return e.failf("roles create", err)
		}
		return e.printRoles([]rbac.Role{role}, opts.JSONOutput)
	case "update":
		if opts.RoleID == "" {
			return e.usagef("roles update", "--role is required")
		}
		var req rbac.UpdateRoleRequest
		if opts.Set["name"] {
			req.Name = &opts.Name
		}
		if opts.Set["description"] {
			req.Description = &opts.Description
		}
		if opts.Set["color"] {
			req.Color = &opts.Color
		}
		if opts.Set["permission"] {
			perms := opts.Permissions
			req.Permissions = &perms
		}
		role, err := e.Console.UpdateRole(ctx, opts.RoleID, req)
		if err != nil {
			return e.failf("roles update", err)
		}
		return e.printRoles([]rbac.Role{role}, opts.JSONOutput)
	case "delete":
		if opts.RoleID == "" {
			return e.usagef("roles delete", "--role is required")
		}
		if err := e.Console.DeleteRole(ctx, opts.RoleID); err != nil {
			return e.failf("roles delete", err)
		}
		fmt.Fprintf(e.stdout(), "deleted role %s\n", opts.RoleID)
		return ExitOK
	case "assign", "unassign":
		if opts.RoleID == "" || opts.UserID == "" {
			return e.usagef("roles "+opts.Action, "--role and --user are required")
		}
		if opts.Action == "assign" {
			if _, err := e.Console.AssignRole(ctx, opts.UserID, opts.RoleID); err != nil {
				return e.failf("roles assign", err)
			}
			fmt.Fprintf(e.stdout(), "assigned role %s to %s\n", opts.RoleID, opts.UserID)
			return ExitOK
		}
		if err := e.Console.UnassignRole(ctx, opts.UserID, opts.RoleID); err != nil {
			return e.failf("roles unassign", err)
		}
		fmt.Fprintf(e.stdout(), "removed role %s from %s\n", opts.RoleID, opts.UserID)
		return ExitOK
	case "user":
		if opts.UserID == "" {
			return e.usagef("roles user", "--user is required")
		}
		resp, err := e.Console.UserRoles(ctx, opts.UserID)
		if err != nil {
			return e.failf("roles user", err)
		}
		if opts.JSONOutput {
			if err := writeJSON(e.stdout(), resp); err != nil {
				return e.failf("roles user", err)
			}
			return ExitOK
		}
		fmt.Fprintf(e.stdout(), "%s (%s)\n", resp.UserName, resp.UserID)
		for _, ur := range resp.Roles {
			fmt.Fprintf(e.stdout(), "  %s\t%s\n", ur.Role.Name, ur.AssignedAt.Format("2006-01-02"))
		}
		return ExitOK
	default:
		return e.usagef("roles", "unknown action %q", opts.Action)
	}
}

func (e *Env) printRoles(roles []rbac.Role, jsonOutput bool) int {
	if jsonOutput {
		if err := writeJSON(e.stdout(), roles); err != nil {
			return e.failf("roles", err)
		}
		return ExitOK
	}
	tw := tabwriter.NewWriter(e.stdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSYSTEM\tPERMISSIONS")
	for _, r := range roles {
		system := ""
		if r.IsSystemRole {
			system = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", r.ID, r.Name, system, len(r.Permissions))
	}
	_ = tw.Flush()
	return ExitOK
}

func (e *Env) printPermissions(perms []rbac.Permission, jsonOutput bool) int {
	if jsonOutput {
		if err := writeJSON(e.stdout(), perms); err != nil {
			return e.failf("roles", err)
		}
		return ExitOK
	}
	grouped := admin.ByCategory(perms)
	categories := make([]string, 0, len(grouped))
	for c := range grouped {
		categories = append(categories, string(c))
	}
	sort.Strings(categories)
	for _, c := range categories {
		fmt.Fprintf(e.stdout(), "%s\n", c)
		for _, p := range grouped[rbac.Category(c)] {
			fmt.Fprintf(e.stdout(), "  %-24s %s\n", p.Name, p.Description)
		}
	}
	return ExitOK
}
