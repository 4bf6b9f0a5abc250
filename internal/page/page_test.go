package page

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pagepress/internal/foundation/errors"
	"git.home.luguber.info/inful/pagepress/internal/frontmatter"
	"git.home.luguber.info/inful/pagepress/internal/render"
	"git.home.luguber.info/inful/pagepress/internal/scanner"
)

func layouts(t *testing.T, files map[string]string) Context {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return Context{Templates: render.New(root)}
}

func entry(rel ...string) scanner.SourceEntry {
	return scanner.SourceEntry{
		Path:      rel,
		ModTime:   time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		Extension: filepath.Ext(rel[len(rel)-1]),
	}
}

func TestConstruct_TemplatedDerivesTemplateAndRewritesExtension(t *testing.T) {
	ctx := layouts(t, map[string]string{"about.tmpl": `<main>{{.Page.Content}}</main>`})
	reg := NewDefaultRegistry()

	p, err := reg.Construct(TagTemplated, ctx, entry("about.md"), frontmatter.FrontMatter{}, []byte("<p>Hi</p>"))
	require.NoError(t, err)
	require.Equal(t, []string{"about.html"}, p.Path())
	require.Equal(t, "/about.html", p.URL())
	require.Equal(t, "about.tmpl", p.(*Templated).TemplateName)

	out, err := p.Render(&Site{})
	require.NoError(t, err)
	require.Equal(t, "<main><p>Hi</p></main>", string(out))
}

func TestConstruct_DerivedTemplateKeepsDirectory(t *testing.T) {
	ctx := layouts(t, map[string]string{"docs/intro.tmpl": `{{.Page.Title}}`})
	p, err := NewDefaultRegistry().Construct(TagTemplated, ctx, entry("docs", "intro.md"), nil, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"docs", "intro.html"}, p.Path())
	require.Equal(t, "docs/intro.tmpl", p.(*Templated).TemplateName)
	// The source entry itself is not modified.
	require.Equal(t, []string{"docs", "intro.md"}, p.Source().Path)
}

func TestConstruct_ExplicitTemplateDrivesExtension(t *testing.T) {
	ctx := layouts(t, map[string]string{
		"feed.xml":    `<feed>{{.Page.Meta "channel"}}</feed>`,
		"layout.tmpl": `x`,
	})
	reg := NewDefaultRegistry()

	feed, err := reg.Construct(TagTemplated, ctx, entry("feed.md"),
		frontmatter.FrontMatter{"template": "/feed.xml", "channel": "news"}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"feed.xml"}, feed.Path())
	require.Equal(t, "news", feed.Meta("channel"))
	_, claimedLeft := feed.Extra().Get("template")
	require.False(t, claimedLeft, "template is claimed, not extra")

	out, err := feed.Render(&Site{})
	require.NoError(t, err)
	require.Equal(t, "<feed>news</feed>", string(out))

	html, err := reg.Construct(TagHTML, ctx, entry("page.md"), frontmatter.FrontMatter{"template": "layout.tmpl"}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"page.html"}, html.Path())
	require.IsType(t, &HTML{}, html)
}

func TestConstruct_MissingTemplateIsRenderError(t *testing.T) {
	ctx := layouts(t, nil)
	_, err := NewDefaultRegistry().Construct(TagTemplated, ctx, entry("about.md"), nil, nil)
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryRender))
}

func TestConstruct_FileVariantsRenderVerbatim(t *testing.T) {
	reg := NewDefaultRegistry()
	for _, tag := range []string{TagFile, TagPlain, TagPage, TagStylesheet, TagJavascript} {
		p, err := reg.Construct(tag, Context{}, entry("css", "site.css"), frontmatter.FrontMatter{"media": "screen"}, []byte("body{}"))
		require.NoError(t, err, tag)
		require.Equal(t, tag, p.Kind())
		require.Equal(t, []string{"css", "site.css"}, p.Path())
		require.Equal(t, "screen", p.Meta("media"))
		out, err := p.Render(nil)
		require.NoError(t, err)
		require.Equal(t, "body{}", string(out))
	}
}

func TestConstruct_UnknownTag(t *testing.T) {
	_, err := NewDefaultRegistry().Construct("gallery", Context{}, entry("a.md"), nil, nil)
	require.True(t, errors.HasCategory(err, errors.CategoryParse))
}

func TestBlogPost_TitleAndPublished(t *testing.T) {
	ctx := layouts(t, map[string]string{"post.tmpl": `{{.Page.Title}} {{formatDate "2006-01-02" .Page.Published}}`})
	reg := NewDefaultRegistry()

	p, err := reg.Construct(TagBlog, ctx, entry("blog", "hello.md"), frontmatter.FrontMatter{
		"title": "Hello", "published": "05/03/2020", "template": "post.tmpl", "tags": "go",
	}, nil)
	require.NoError(t, err)

	post := p.(*BlogPost)
	require.Equal(t, "Hello", post.Title())
	require.Equal(t, time.Date(2020, time.March, 5, 0, 0, 0, 0, time.UTC), *post.Published())
	require.Equal(t, frontmatter.FrontMatter{"tags": "go"}, post.Extra())
	require.Equal(t, []string{"blog", "hello.html"}, post.Path())

	out, err := post.Render(&Site{})
	require.NoError(t, err)
	require.Equal(t, "Hello 2020-03-05", string(out))
}

func TestBlogPost_WithoutPublished(t *testing.T) {
	ctx := layouts(t, map[string]string{"post.tmpl": `x`})
	p, err := NewDefaultRegistry().Construct(TagBlog, ctx, entry("a.md"),
		frontmatter.FrontMatter{"title": "A", "template": "post.tmpl"}, nil)
	require.NoError(t, err)
	require.Nil(t, p.(*BlogPost).Published())
}

func TestBlogPost_RequiresTitle(t *testing.T) {
	ctx := layouts(t, map[string]string{"post.tmpl": `x`})
	_, err := NewDefaultRegistry().Construct(TagBlog, ctx, entry("a.md"),
		frontmatter.FrontMatter{"template": "post.tmpl"}, nil)
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryParse))
}

func TestBlogPost_MalformedPublished(t *testing.T) {
	ctx := layouts(t, map[string]string{"post.tmpl": `x`})
	for _, bad := range []string{"05-03-2020", "2020/03/05", "5/3/20", "31/02/2020"} {
		_, err := NewDefaultRegistry().Construct(TagBlog, ctx, entry("a.md"),
			frontmatter.FrontMatter{"title": "A", "template": "post.tmpl", "published": bad}, nil)
		require.Error(t, err, bad)
		require.True(t, errors.HasCategory(err, errors.CategoryParse), bad)
	}
}

func TestParsePublished(t *testing.T) {
	d, err := ParsePublished("05/03/2020")
	require.NoError(t, err)
	require.Equal(t, 2020, d.Year())
	require.Equal(t, time.March, d.Month())
	require.Equal(t, 5, d.Day())

	d, err = ParsePublished("5/3/2020")
	require.NoError(t, err)
	require.Equal(t, 5, d.Day())
}

func TestTitle_FallsBackToFileName(t *testing.T) {
	p := NewFile(TagFile, Source{Entry: entry("blog", "my-first_post.md")})
	require.Equal(t, "My First Post", p.Title())

	p = NewFile(TagFile, Source{Entry: entry("a.md"), Extra: frontmatter.FrontMatter{"title": "Given"}})
	require.Equal(t, "Given", p.Title())
}

func TestRegistry_RejectsInvalidRegistrations(t *testing.T) {
	r := NewRegistry()
	ok := Factory{New: func(Context, Source, map[string]string) (Page, error) { return nil, nil }}

	require.Error(t, r.Register("", ok))
	require.Error(t, r.Register("Gallery", ok))
	require.Error(t, r.Register(" gallery", ok))
	require.Error(t, r.Register("gallery", Factory{}))
	require.Error(t, r.Register("gallery", Factory{Claims: []string{"Title"}, New: ok.New}))
	require.Error(t, r.Register("gallery", Factory{Claims: []string{"type"}, New: ok.New}))
	require.NoError(t, r.Register("gallery", ok))
	require.Error(t, r.Register("gallery", ok))
	require.Equal(t, []string{"gallery"}, r.Tags())
	require.False(t, NewDefaultRegistry().Has("gallery"), "registries are independent")
}

func TestRegistry_CustomFactoryReceivesOnlyClaims(t *testing.T) {
	r := NewRegistry()
	var got map[string]string
	var extra frontmatter.FrontMatter
	require.NoError(t, r.Register("note", Factory{
		Claims: []string{"color"},
		New: func(_ Context, src Source, claimed map[string]string) (Page, error) {
			got = claimed
			extra = src.Extra
			return NewFile("note", src), nil
		},
	}))

	meta := frontmatter.FrontMatter{"color": "red", "title": "T"}
	_, err := r.Construct("note", Context{}, entry("n.md"), meta, nil)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"color": "red"}, got)
	require.Equal(t, frontmatter.FrontMatter{"title": "T"}, extra)
	require.Equal(t, "red", meta["color"], "caller's metadata is not consumed")
}

func TestSite_PostsOrdering(t *testing.T) {
	ctx := layouts(t, map[string]string{"post.tmpl": `x`})
	reg := NewDefaultRegistry()
	mk := func(name, published string) Page {
		meta := frontmatter.FrontMatter{"title": name, "template": "post.tmpl"}
		if published != "" {
			meta["published"] = published
		}
		p, err := reg.Construct(TagBlog, ctx, entry("blog", name+".md"), meta, nil)
		require.NoError(t, err)
		return p
	}
	other, err := reg.Construct(TagFile, ctx, entry("robots.txt"), nil, nil)
	require.NoError(t, err)

	site := &Site{Pages: []Page{
		mk("old", "01/01/2019"),
		mk("undated-b", ""),
		other,
		mk("new", "01/01/2021"),
		mk("undated-a", ""),
	}}

	var urls []string
	for _, p := range site.Posts() {
		urls = append(urls, p.URL())
	}
	require.Equal(t, []string{
		"/blog/new.html",
		"/blog/old.html",
		"/blog/undated-a.html",
		"/blog/undated-b.html",
	}, urls)
	require.Len(t, site.Kind(TagFile), 1)
}

func TestTemplates_SeeSiteAndPage(t *testing.T) {
	ctx := layouts(t, map[string]string{
		"index.tmpl": `{{.Site.Param "name"}}:{{range .Site.Posts}}[{{.Title}}]{{end}}:{{.Site.BuildID}}`,
		"post.tmpl":  `p`,
	})
	reg := NewDefaultRegistry()
	post, err := reg.Construct(TagBlog, ctx, entry("blog", "a.md"),
		frontmatter.FrontMatter{"title": "A", "template": "post.tmpl"}, nil)
	require.NoError(t, err)
	index, err := reg.Construct(TagTemplated, ctx, entry("index.md"), nil, nil)
	require.NoError(t, err)

	site := &Site{Pages: []Page{post, index}, BuildID: "b1", Params: map[string]string{"name": "Demo"}}
	out, err := index.Render(site)
	require.NoError(t, err)
	require.Equal(t, "Demo:[A]:b1", string(out))
}
