package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/boddenberg/finanzo-go/internal/domain"

	"github.com/google/uuid"
)

// builtinNamespace scopes the remote ids of the built-in categories.
var builtinNamespace = uuid.MustParse("9b3f6c1e-52a4-4d0f-8e27-1c6a0d4b7f95")

// remoteCategoryID maps a category id onto the uuid column. Built-in ids
// get a stable uuid per user so every device computes the same one; any
// other non-uuid reference is dropped.
func remoteCategoryID(userID, id string) *string {
	if _, err := uuid.Parse(id); err == nil {
		return &id
	}
	for _, c := range domain.DefaultCategories() {
		if c.ID == id {
			v := uuid.NewSHA1(builtinNamespace, []byte(userID+"/"+id)).String()
			return &v
		}
	}
	return nil
}

// localCategoryID reverses remoteCategoryID.
func localCategoryID(userID, id string) string {
	for _, c := range domain.DefaultCategories() {
		if *remoteCategoryID(userID, c.ID) == id {
			return c.ID
		}
	}
	return id
}

// supabaseCategory maps the categories table. Color is stored as the
// token name; legacy rows may still hold a class string.
type supabaseCategory struct {
	ID     string `json:"id"`
	UserID string `json:"user_id,omitempty"`
	Name   string `json:"name"`
	Icon   string `json:"icon"`
	Color  string `json:"color"`
	Type   string `json:"type"`
}

// ListCategories returns the user's categories in table order.
func (c *Client) ListCategories(ctx context.Context, sess *domain.RemoteSession) ([]domain.Category, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListCategories")
	defer span.End()

	var categories []domain.Category

	err := c.read(ctx, "supabase/categories", func() error {
		path := fmt.Sprintf("categories?user_id=eq.%s&select=id,name,icon,color,type", url.QueryEscape(sess.UserID))
		body, err := c.doRequest(ctx, http.MethodGet, path, sess.AccessToken)
		if err != nil {
			return classify(err)
		}

		categories = []domain.Category{}
		if body == nil {
			return nil
		}

		var rows []supabaseCategory
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode categories: %w", err)
		}
		for _, r := range rows {
			categories = append(categories, domain.Category{
				ID:    localCategoryID(sess.UserID, r.ID),
				Name:  r.Name,
				Icon:  r.Icon,
				Color: domain.ParseCategoryColor(r.Color),
				Type:  domain.TransactionType(r.Type),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return categories, nil
}

func (c *Client) InsertCategory(ctx context.Context, sess *domain.RemoteSession, cat domain.Category) error {
	ctx, span := tracer.Start(ctx, "Supabase.InsertCategory")
	defer span.End()

	id := cat.ID
	if rid := remoteCategoryID(sess.UserID, cat.ID); rid != nil {
		id = *rid
	}
	row := supabaseCategory{
		ID:     id,
		UserID: sess.UserID,
		Name:   cat.Name,
		Icon:   cat.Icon,
		Color:  string(cat.Color),
		Type:   string(cat.Type),
	}
	return c.write("supabase/categories", func() error {
		_, err := c.doPost(ctx, "categories", sess.AccessToken, row)
		return classify(err)
	})
}

func (c *Client) DeleteCategory(ctx context.Context, sess *domain.RemoteSession, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteCategory")
	defer span.End()

	if rid := remoteCategoryID(sess.UserID, id); rid != nil {
		id = *rid
	}
	return c.write("supabase/categories", func() error {
		return classify(c.doDelete(ctx, "categories?id=eq."+url.QueryEscape(id), sess.AccessToken))
	})
}
