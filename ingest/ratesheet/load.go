package ratesheet

import (
	"context"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"ratedeck/decision/comparison"
)

// LoadPair loads two rate decks concurrently into a comparison input.
// File names are the base names of the paths.
func LoadPair(ctx context.Context, path1, path2 string) (comparison.Input, error) {
	input := comparison.Input{
		FileName1: filepath.Base(path1),
		FileName2: filepath.Base(path2),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if err := gctx.Err(); err != nil {
			return err
		}
		input.File1Data, err = LoadFile(path1)
		return err
	})
	g.Go(func() (err error) {
		if err := gctx.Err(); err != nil {
			return err
		}
		input.File2Data, err = LoadFile(path2)
		return err
	})
	if err := g.Wait(); err != nil {
		return comparison.Input{}, err
	}
	return input, nil
}

// LoadUSPair loads two US rate decks concurrently
func LoadUSPair(ctx context.Context, path1, path2 string) (comparison.USInput, error) {
	input := comparison.USInput{
		FileName1: filepath.Base(path1),
		FileName2: filepath.Base(path2),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if err := gctx.Err(); err != nil {
			return err
		}
		input.File1Data, err = LoadUSFile(path1)
		return err
	})
	g.Go(func() (err error) {
		if err := gctx.Err(); err != nil {
			return err
		}
		input.File2Data, err = LoadUSFile(path2)
		return err
	})
	if err := g.Wait(); err != nil {
		return comparison.USInput{}, err
	}
	return input, nil
}
