// Package zonemap embeds the zoning map page logic in a Go program:
// the feature collection, hover and highlight resolution, and the
// click-to-explain query session, without the HTTP server.
//
//	client, _ := zonemap.New(ctx,
//	    zonemap.WithSource("s3://maps/zoning.geojson"),
//	    zonemap.WithOpenAI(os.Getenv("OPENAI_API_KEY"), "", "gpt-4o-mini"),
//	)
//	_ = client.Load(ctx)
//
//	p := client.NewPage()
//	defer p.Close()
//	_ = p.PointerMoveAt(120, 45, -45.938, -22.227)
//	if ok, _ := p.Click(-45.938, -22.227); ok {
//	    snap, _ := p.Wait(ctx)
//	    fmt.Println(snap.Query.Message)
//	}
package zonemap
