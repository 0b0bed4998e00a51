package cmd

import (
	"fmt"
	"strings"

	"github.com/lepinkainen/deepresearch/internal/config"
	"github.com/lepinkainen/deepresearch/internal/overrides"
)

// OverridesListCmd prints the built-in corrections merged with overrides.file
type OverridesListCmd struct{}

func (o *OverridesListCmd) Run() error {
	table, err := overrides.Load(config.OverridesFile)
	if err != nil {
		return err
	}

	for _, e := range table.Entries() {
		fields := []string{e.Title}
		if e.PublishedYear != nil {
			fields = append(fields, fmt.Sprintf("year=%d", *e.PublishedYear))
		}
		if e.BookType != nil {
			fields = append(fields, "type="+string(*e.BookType))
		}
		if isbn := e.ISBN13(); isbn != "" {
			fields = append(fields, "isbn13="+isbn)
		}
		if len(e.Genres) > 0 {
			fields = append(fields, "genres="+strings.Join(e.Genres, ","))
		}
		if _, err := fmt.Fprintln(stdout, strings.Join(fields, "  ")); err != nil {
			return err
		}
	}
	return nil
}
