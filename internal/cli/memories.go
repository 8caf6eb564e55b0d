package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/almacen/internal/common"
	"github.com/dmitrijs2005/almacen/internal/models"
	"github.com/dmitrijs2005/almacen/internal/services"
)

var errSaveFailed = errors.New("memory was not saved, see the log for details")

func (a *App) Add(ctx context.Context, args []string) error {
	kind := models.MemoryTypeText
	if len(args) > 0 {
		kind = models.MemoryType(strings.ToLower(args[0]))
		if !kind.Valid() {
			return fmt.Errorf("%w: unknown memory type %q", common.ErrValidation, args[0])
		}
	}

	title, err := getSimpleText(a.in, "Title", a.out)
	if err != nil {
		return err
	}
	content, err := getMultiline(a.in, "Content", a.out)
	if err != nil {
		return err
	}
	tags, err := getSimpleText(a.in, "Tags (comma separated)", a.out)
	if err != nil {
		return err
	}

	m := &models.Memory{
		Title:   title,
		Content: models.PlainContent{Text: content},
		Type:    kind,
		Tags:    splitTags(tags),
	}

	if kind != models.MemoryTypeText {
		if m.FilePath, err = getSimpleText(a.in, "File path", a.out); err != nil {
			return err
		}
	}

	level, err := getSimpleText(a.in, "Encryption (none, basic, advanced, maximum; empty for default)", a.out)
	if err != nil {
		return err
	}
	m.EncryptionLevel = models.EncryptionLevel(strings.ToLower(level))

	privacy, err := getSimpleText(a.in, "Privacy 1-4 (empty for public)", a.out)
	if err != nil {
		return err
	}
	if privacy != "" {
		if m.PrivacyLevel, err = strconv.Atoi(privacy); err != nil {
			return fmt.Errorf("%w: privacy must be a number", common.ErrValidation)
		}
	}

	ok, err := a.memories.Save(ctx, a.session, m)
	if err != nil {
		return err
	}
	if !ok {
		return errSaveFailed
	}
	fmt.Fprintf(a.out, "Memory %d saved.\n", m.ID)
	return nil
}

func (a *App) List(ctx context.Context, args []string) error {
	limit, offset, err := pageArgs(args)
	if err != nil {
		return err
	}

	ms := a.memories.List(ctx, limit, offset)
	if len(ms) == 0 {
		fmt.Fprintln(a.out, "No memories.")
		return nil
	}
	for i := range ms {
		fmt.Fprintln(a.out, summary(&ms[i]))
	}
	return nil
}

func (a *App) Show(ctx context.Context, args []string) error {
	id, err := idArg(args)
	if err != nil {
		return err
	}

	m, err := a.memories.Open(ctx, a.session, id)
	if errors.Is(err, common.ErrMissingKey) {
		var pw string
		if pw, err = getPassword(a.in, "Password for this memory", a.out); err != nil {
			return err
		}
		m, err = a.memories.Open(ctx, nil, id, services.WithPassword(pw))
	}
	if err != nil {
		return err
	}

	text, _ := m.Text()
	fmt.Fprintf(a.out, "#%d %s [%s]\n", m.ID, m.Title, m.Type)
	fmt.Fprintf(a.out, "created %s, updated %s\n", m.CreatedAt.Local().Format(timeLayout), m.UpdatedAt.Local().Format(timeLayout))
	if len(m.Tags) > 0 {
		fmt.Fprintf(a.out, "tags: %s\n", strings.Join(m.Tags, ", "))
	}
	if m.FilePath != "" {
		fmt.Fprintf(a.out, "file: %s\n", m.FilePath)
	}
	fmt.Fprintf(a.out, "privacy %d, encryption %s\n\n%s\n", m.PrivacyLevel, m.EncryptionLevel, text)
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	id, err := idArg(args)
	if err != nil {
		return err
	}
	if !confirm(a.in, fmt.Sprintf("Delete memory %d?", id), a.out) {
		return nil
	}
	if !a.memories.Delete(ctx, id) {
		return fmt.Errorf("memory %d: %w", id, common.ErrNotFound)
	}
	fmt.Fprintf(a.out, "Memory %d deleted.\n", id)
	return nil
}

func (a *App) Tags(ctx context.Context, _ []string) error {
	tags := a.memories.Tags(ctx)
	if len(tags) == 0 {
		fmt.Fprintln(a.out, "No tags.")
		return nil
	}
	for _, t := range tags {
		fmt.Fprintf(a.out, "%-20s %d\n", t.Tag, t.Count)
	}
	return nil
}

const timeLayout = "2006-01-02 15:04"

func summary(m *models.Memory) string {
	lock := ""
	if m.IsEncrypted() {
		lock = " (encrypted)"
	}
	tags := ""
	if len(m.Tags) > 0 {
		tags = " #" + strings.Join(m.Tags, " #")
	}
	return fmt.Sprintf("%d\t%s\t%s\t%s%s%s", m.ID, m.CreatedAt.Local().Format(timeLayout), m.Type, m.Title, lock, tags)
}

func idArg(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%w: an id is required", common.ErrValidation)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", common.ErrValidation, args[0])
	}
	return id, nil
}

func pageArgs(args []string) (limit, offset int, err error) {
	nums := make([]int, 2)
	for i := 0; i < len(args) && i < 2; i++ {
		if nums[i], err = strconv.Atoi(args[i]); err != nil || nums[i] < 0 {
			return 0, 0, fmt.Errorf("%w: invalid number %q", common.ErrValidation, args[i])
		}
	}
	return nums[0], nums[1], nil
}
