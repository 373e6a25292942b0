package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/ir"
	"github.com/roach88/strata/internal/projection"
)

// EntityRow is the CLI form of a projected entity.
type EntityRow struct {
	Domain  string    `json:"domain"`
	Key     string    `json:"key"`
	Owner   string    `json:"owner"`
	Tip     ir.Record `json:"tip"`
	Members int       `json:"members"`
}

func newEntityRow(e projection.Entity) EntityRow {
	return EntityRow{
		Domain:  e.Domain,
		Key:     projection.DisplayKey(e.Key),
		Owner:   e.Owner(),
		Tip:     e.Tip,
		Members: len(e.Members),
	}
}

// EntityList is the result of the list command.
type EntityList []EntityRow

func (l EntityList) renderText(w io.Writer) {
	if len(l) == 0 {
		fmt.Fprintln(w, "No entities.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tTIP\tOWNER\tUPDATED\tFIELDS")
	for _, r := range l {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", short(r.Key), short(r.Tip.ID), r.Owner, r.Tip.Timestamp, compactFields(r.Tip.Fields()))
	}
	tw.Flush()
}

func (r EntityRow) renderText(w io.Writer) {
	fmt.Fprintf(w, "Domain:  %s\n", r.Domain)
	fmt.Fprintf(w, "Key:     %s\n", r.Key)
	fmt.Fprintf(w, "Owner:   %s\n", r.Owner)
	fmt.Fprintf(w, "Tip:     %s (by %s at %d)\n", r.Tip.ID, r.Tip.Author, r.Tip.Timestamp)
	fmt.Fprintf(w, "Members: %d\n", r.Members)
	fmt.Fprintf(w, "Fields:  %s\n", compactFields(r.Tip.Fields()))
}

// RecordList is the result of the history command.
type RecordList []ir.Record

func (l RecordList) renderText(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tID\tAUTHOR\tTIMESTAMP\tKIND\tPAYLOAD")
	for _, r := range l {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n", r.Seq, short(r.ID), r.Author, r.Timestamp, r.Kind, compactFields(r.Raw))
	}
	tw.Flush()
}

// AppendedRecord is the result of the publish, edit and delete commands.
type AppendedRecord struct {
	ir.Record
}

func (r AppendedRecord) renderText(w io.Writer) {
	fmt.Fprintf(w, "Appended %s record %s (seq %d)\n", r.Kind, r.ID, r.Seq)
}

func short(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func compactFields(obj ir.Object) string {
	if obj == nil {
		return "{}"
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return "<unprintable>"
	}
	return string(data)
}

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Author   string
	Category string
	Statuses []string
	Since    int64
	Order    string
	Limit    int
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list <domain>",
		Short: "List the visible entities of a domain",
		Long: `List the visible entities of a domain with their current tips.

Examples:
  strata list market --db ./strata.db
  strata list market --status FOR_SALE --status OPEN --order oldest
  strata list posts --order top --limit 10 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Author, "author", "", "only entities owned by author")
	cmd.Flags().StringVar(&opts.Category, "category", "", "only entities in category")
	cmd.Flags().StringArrayVar(&opts.Statuses, "status", nil, "only entities with status (repeatable)")
	cmd.Flags().Int64Var(&opts.Since, "since", 0, "only tips at or after this Unix ms")
	cmd.Flags().StringVar(&opts.Order, "order", "recent", "ordering (recent|oldest|top)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum entities (0 for all)")

	return cmd
}

func runList(opts *ListOptions, domain string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	order := projection.Order(opts.Order)
	switch order {
	case projection.OrderRecent, projection.OrderOldest, projection.OrderTop:
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid order %q: must be recent, oldest or top", opts.Order))
	}

	svc, st, err := opts.openService()
	if err != nil {
		return err
	}
	defer st.Close()

	entities, err := svc.ListEntities(cmd.Context(), domain, projection.Filter{
		Author:   opts.Author,
		Category: opts.Category,
		Statuses: opts.Statuses,
		Since:    opts.Since,
		Order:    order,
		Limit:    opts.Limit,
	})
	if err != nil {
		return out.Fail("list failed", err)
	}

	rows := make(EntityList, len(entities))
	for i, e := range entities {
		rows[i] = newEntityRow(e)
	}
	return out.Success(rows)
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <domain> <id>",
		Short: "Show the entity containing a record",
		Long: `Show the visible entity containing the given record id or key,
with its current tip.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			svc, st, err := rootOpts.openService()
			if err != nil {
				return err
			}
			defer st.Close()

			e, err := svc.GetEntity(cmd.Context(), args[0], args[1])
			if err != nil {
				return out.Fail("get failed", err)
			}
			return out.Success(newEntityRow(e))
		},
	}
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <domain> <id>",
		Short: "Show every record of an entity in log order",
		Long: `Show the records of the entity containing the given id in log order,
including superseded versions and concurrent siblings.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			svc, st, err := rootOpts.openService()
			if err != nil {
				return err
			}
			defer st.Close()

			records, err := svc.History(cmd.Context(), args[0], args[1])
			if err != nil {
				return out.Fail("history failed", err)
			}
			return out.Success(RecordList(records))
		},
	}
}

// MutationOptions holds flags shared by publish, edit and delete.
type MutationOptions struct {
	*RootOptions
	Author string
	Fields string   // JSON object
	Set    []string // key=value pairs
}

func (o *MutationOptions) addFlags(cmd *cobra.Command, withFields bool) {
	cmd.Flags().StringVar(&o.Author, "author", "", "author of the appended record (required)")
	_ = cmd.MarkFlagRequired("author")
	if withFields {
		cmd.Flags().StringVar(&o.Fields, "fields", "{}", "content fields as a JSON object")
		cmd.Flags().StringArrayVar(&o.Set, "set", nil, "string field as key=value (repeatable)")
	}
}

// fields merges --fields and --set; --set wins on conflicts.
func (o *MutationOptions) fields() (ir.Object, error) {
	var obj ir.Object
	if err := json.Unmarshal([]byte(o.Fields), &obj); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid --fields JSON", err)
	}
	if obj == nil {
		obj = ir.Object{}
	}
	for _, kv := range o.Set {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid --set %q: expected key=value", kv))
		}
		obj[k] = ir.String(v)
	}
	return obj, nil
}

// NewPublishCommand creates the publish command.
func NewPublishCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MutationOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "publish <domain>",
		Short: "Append a new entity to a domain",
		Long: `Append a new content record to a domain.

Examples:
  strata publish market --author alice --set title=bike --set status=FOR_SALE
  strata publish pixels --author bob --fields '{"x":1,"y":2,"color":"red"}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			fields, err := opts.fields()
			if err != nil {
				return err
			}
			svc, st, err := opts.openService()
			if err != nil {
				return err
			}
			defer st.Close()

			rec, err := svc.Publish(cmd.Context(), args[0], opts.Author, fields)
			if err != nil {
				return out.Fail("publish failed", err)
			}
			return out.Success(AppendedRecord{rec})
		},
	}
	opts.addFlags(cmd, true)
	return cmd
}

// NewEditCommand creates the edit command.
func NewEditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MutationOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "edit <domain> <id>",
		Short: "Supersede the current tip of an entity",
		Long: `Append a record replacing the current tip of the entity containing id.

Only the owner may edit. In ranked domains a missing status is carried over
and lowering the status is rejected.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			fields, err := opts.fields()
			if err != nil {
				return err
			}
			svc, st, err := opts.openService()
			if err != nil {
				return err
			}
			defer st.Close()

			rec, err := svc.PublishEdit(cmd.Context(), args[0], opts.Author, args[1], fields)
			if err != nil {
				return out.Fail("edit failed", err)
			}
			return out.Success(AppendedRecord{rec})
		},
	}
	opts.addFlags(cmd, true)
	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MutationOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "delete <domain> <id>",
		Short:         "Tombstone the current tip of an entity",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			svc, st, err := opts.openService()
			if err != nil {
				return err
			}
			defer st.Close()

			rec, err := svc.DeleteEntity(cmd.Context(), args[0], opts.Author, args[1])
			if err != nil {
				return out.Fail("delete failed", err)
			}
			return out.Success(AppendedRecord{rec})
		},
	}
	opts.addFlags(cmd, false)
	return cmd
}
