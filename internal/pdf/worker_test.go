package pdf

import "testing"

func TestComputeEffectiveScaleClampsToKittyMax(t *testing.T) {
	p := RenderParams{
		Area:     Rect{Width: 1000, Height: 1000},
		Scale:    1.0,
		CellSize: CellSize{Width: 20, Height: 40},
	}
	eff := computeEffectiveScale(100, 100, p)
	if eff*100 > KittyMaxDimension+1e-6 {
		t.Fatalf("expected clamped dimension, got %v px", eff*100)
	}
}

func TestComputeEffectiveScaleViewportFit(t *testing.T) {
	p := RenderParams{
		Area:     Rect{Width: 10, Height: 10},
		Scale:    1.0,
		CellSize: CellSize{Width: 8, Height: 16},
	}
	eff := computeEffectiveScale(200, 200, p)
	if eff <= 0 || eff >= 1 {
		t.Fatalf("expected scale in (0,1) to fit viewport, got %v", eff)
	}
}

func TestWorkerPoolRendersPage(t *testing.T) {
	doc := NewSyntheticDocument(2, 200, 300)
	cache := NewCache(10)
	requests := make(chan Request, 4)
	responses := make(chan Response, 4)

	pool := NewWorkerPool(1, requests, responses, func() Document { return doc }, cache, nil)

	requests <- Request{ID: 1, Kind: ReqPage, Page: 0, Params: RenderParams{Scale: 1.0}}
	resp := <-responses
	if resp.Kind != RespPage || resp.Page == nil {
		t.Fatalf("expected page response, got %+v", resp)
	}
	if resp.Page.Width <= 0 || len(resp.Page.LineBounds) == 0 {
		t.Fatalf("expected rendered pixels and line bounds, got %+v", resp.Page)
	}

	requests <- Request{Kind: ReqShutdown}
	pool.Wait()
}

func TestWorkerPoolExtractText(t *testing.T) {
	doc := NewSyntheticDocument(1, 200, 300)
	cache := NewCache(10)
	requests := make(chan Request, 4)
	responses := make(chan Response, 4)

	pool := NewWorkerPool(1, requests, responses, func() Document { return doc }, cache, nil)

	requests <- Request{
		ID:   2,
		Kind: ReqExtractText,
		Bounds: []PageSelectionBounds{
			{Page: 0, StartX: 0, EndX: 100, MinY: 0, MaxY: 40},
		},
	}
	resp := <-responses
	if resp.Kind != RespExtractedText {
		t.Fatalf("expected extracted text response, got %+v", resp)
	}

	requests <- Request{Kind: ReqShutdown}
	pool.Wait()
}
