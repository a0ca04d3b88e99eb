// Package main: the demo problem builders and their subcommands.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/gitrdm/goconstrain/internal/portfolio"
	"github.com/gitrdm/goconstrain/pkg/solver"
)

// runProblem builds and solves a problem, racing seeds when --parallel is
// above one, and prints statistics.
func runProblem(opts *rootOptions, build portfolio.BuildFunc, render func(*solver.Solver)) error {
	seed := opts.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	var (
		winner *solver.Solver
		status solver.Result
	)
	if opts.parallel > 1 {
		seeds := make([]int64, opts.parallel)
		for i := range seeds {
			seeds[i] = seed + int64(i)
		}
		out, err := portfolio.Solve(context.Background(), build, portfolio.Config{
			Seeds:  seeds,
			Logger: opts.logger(),
		})
		if err != nil {
			return err
		}
		winner, status = out.Solver, out.Status
	} else {
		winner = build(seed)
		var err error
		status, err = winner.Solve()
		if err != nil {
			return err
		}
	}

	switch status {
	case solver.ResultSolved:
		color.Green("solved (seed %d)", winner.Seed())
		render(winner)
	case solver.ResultUnsatisfiable:
		color.Red("unsatisfiable")
	default:
		return errors.Errorf("unexpected result %s", status)
	}

	st := winner.Stats()
	fmt.Printf("steps=%s backtracks=%s restarts=%d learned=%s in %s\n",
		humanize.Comma(int64(st.Steps)),
		humanize.Comma(int64(st.Backtracks)),
		st.Restarts,
		humanize.Comma(int64(st.ConstraintsLearned)),
		st.Duration().Round(time.Microsecond))
	return nil
}

// withDecisionLog writes the recorded decision log to the file named by
// --decision-log; it does nothing when no file is given.
func withDecisionLog(opts *rootOptions, log *solver.DecisionLog) error {
	if opts.logFile == "" {
		return nil
	}
	f, err := os.Create(opts.logFile)
	if err != nil {
		return errors.Wrap(err, "creating decision log")
	}
	defer f.Close()
	return log.Write(f)
}

func newSudokuCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sudoku",
		Short: "Solve an empty sudoku grid",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cells [9][9]solver.VarID
			log := solver.NewDecisionLog()
			build := func(seed int64) *solver.Solver {
				s := solver.New("sudoku", seed, solver.WithLogger(opts.logger()), solver.WithOutputLog(log))
				for r := 0; r < 9; r++ {
					for c := 0; c < 9; c++ {
						cells[r][c] = s.NewVariable(fmt.Sprintf("r%dc%d", r, c), solver.NewDomain(1, 9))
					}
				}
				for i := 0; i < 9; i++ {
					row := make([]solver.VarID, 9)
					col := make([]solver.VarID, 9)
					for j := 0; j < 9; j++ {
						row[j] = cells[i][j]
						col[j] = cells[j][i]
					}
					s.AllDifferent(row...)
					s.AllDifferent(col...)
				}
				for br := 0; br < 3; br++ {
					for bc := 0; bc < 3; bc++ {
						box := make([]solver.VarID, 0, 9)
						for r := 0; r < 3; r++ {
							for c := 0; c < 3; c++ {
								box = append(box, cells[br*3+r][bc*3+c])
							}
						}
						s.AllDifferent(box...)
					}
				}
				return s
			}
			err := runProblem(opts, build, func(s *solver.Solver) {
				for r := 0; r < 9; r++ {
					for c := 0; c < 9; c++ {
						fmt.Printf("%d ", s.SolvedValue(cells[r][c]))
					}
					fmt.Println()
				}
			})
			if err != nil {
				return err
			}
			return withDecisionLog(opts, log)
		},
	}
}

func newQueensCommand(opts *rootOptions) *cobra.Command {
	n := 8
	cmd := &cobra.Command{
		Use:   "queens",
		Short: "Solve the N-queens puzzle",
		RunE: func(cmd *cobra.Command, args []string) error {
			var queens []solver.VarID
			build := func(seed int64) *solver.Solver {
				s := solver.New("queens", seed, solver.WithLogger(opts.logger()))
				queens = make([]solver.VarID, n)
				diag1 := make([]solver.VarID, n)
				diag2 := make([]solver.VarID, n)
				for i := 0; i < n; i++ {
					queens[i] = s.NewVariable(fmt.Sprintf("q%d", i), solver.NewDomain(0, n-1))
					diag1[i] = s.NewVariable(fmt.Sprintf("d1_%d", i), solver.NewDomain(0, 2*(n-1)))
					s.Offset(diag1[i], queens[i], i)
					diag2[i] = s.NewVariable(fmt.Sprintf("d2_%d", i), solver.NewDomain(-(n-1), n-1))
					s.Offset(diag2[i], queens[i], -i)
				}
				s.AllDifferent(queens...)
				s.AllDifferent(diag1...)
				s.AllDifferent(diag2...)
				return s
			}
			return runProblem(opts, build, func(s *solver.Solver) {
				for _, q := range queens {
					row := s.SolvedValue(q)
					for x := 0; x < n; x++ {
						if x == row {
							fmt.Print("Q ")
						} else {
							fmt.Print(". ")
						}
					}
					fmt.Println()
				}
			})
		},
	}
	cmd.Flags().IntVarP(&n, "queens", "n", 8, "board size")
	return cmd
}

func newMazeCommand(opts *rootOptions) *cobra.Command {
	width, height := 9, 9
	cmd := &cobra.Command{
		Use:   "maze",
		Short: "Generate a maze with reachable corridors",
		RunE: func(cmd *cobra.Command, args []string) error {
			const wall, blank = 0, 1
			var grid *solver.GridTopology
			var tiles *solver.VertexData[solver.VarID]
			build := func(seed int64) *solver.Solver {
				s := solver.New("maze", seed, solver.WithLogger(opts.logger()))
				grid = solver.NewGridTopology(width, height)
				tiles = s.NewVariableGraph("tile", grid, solver.NewDomain(0, 1))
				entrance, _ := grid.VertexAt(0, 0)
				exit, _ := grid.VertexAt(width-1, height-1)
				s.SetInitialValues(tiles.Get(entrance), blank)
				s.SetInitialValues(tiles.Get(exit), blank)
				s.Reachability(tiles, entrance, blank)
				blockTemplate := func(value int) solver.GraphClauseBuilder {
					return func(vertex int) ([]solver.SignedClause, bool) {
						x, y := grid.Coordinates(vertex)
						var clauses []solver.SignedClause
						for _, d := range [][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
							v, ok := grid.VertexAt(x+d[0], y+d[1])
							if !ok {
								return nil, false
							}
							clauses = append(clauses, solver.Clause(tiles.Get(v), value))
						}
						return clauses, true
					}
				}
				s.MakeGraphClauses(tiles, true, blockTemplate(wall))
				s.MakeGraphClauses(tiles, true, blockTemplate(blank))
				return s
			}
			return runProblem(opts, build, func(s *solver.Solver) {
				for y := 0; y < height; y++ {
					for x := 0; x < width; x++ {
						v, _ := grid.VertexAt(x, y)
						if s.SolvedValue(tiles.Get(v)) == blank {
							fmt.Print("  ")
						} else {
							fmt.Print("██")
						}
					}
					fmt.Println()
				}
			})
		},
	}
	cmd.Flags().IntVar(&width, "width", 9, "maze width")
	cmd.Flags().IntVar(&height, "height", 9, "maze height")
	return cmd
}

func newHamiltonianCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "hamiltonian",
		Short: "Find a Hamiltonian cycle with a rule program",
		RunE: func(cmd *cobra.Command, args []string) error {
			edges := [][2]int{{0, 1}, {0, 2}, {1, 2}, {1, 3}, {2, 0}, {2, 3}, {3, 0}}
			var pathVars [4][4]solver.VarID

			build := func(seed int64) *solver.Solver {
				s := solver.New("hamiltonian", seed, solver.WithLogger(opts.logger()))

				prog := solver.NewProgram("hamiltonian")
				node := prog.Formula("node", 1)
				edge := prog.Formula("edge", 2)
				start := prog.Formula("start", 1)
				for v := 0; v < 4; v++ {
					node.Fact(v)
				}
				for _, e := range edges {
					edge.Fact(e[0], e[1])
				}
				start.Fact(0)

				X := prog.Wildcard("X")
				Y := prog.Wildcard("Y")
				Z := prog.Wildcard("Z")
				X1 := prog.Wildcard("X1")
				Y1 := prog.Wildcard("Y1")

				path := prog.Formula("path", 2)
				omit := prog.Formula("omit", 2)
				prog.Rule(path.T(X, Y), solver.Not(omit.T(X, Y)), edge.T(X, Y))
				prog.Rule(omit.T(X, Y), solver.Not(path.T(X, Y)), edge.T(X, Y))
				prog.Disallow(path.T(X, Y), path.T(X1, Y), solver.Lt(X, X1))
				prog.Disallow(path.T(X, Y), path.T(X, Y1), solver.Lt(Y, Y1))

				onPath := prog.Formula("on_path", 1)
				prog.Rule(onPath.T(Y), path.T(X, Y), path.T(Y, Z))
				prog.Disallow(node.T(X), solver.Not(onPath.T(X)))

				reach := prog.Formula("reach", 1)
				prog.Rule(reach.T(X), start.T(X))
				prog.Rule(reach.T(Y), reach.T(X), path.T(X, Y))
				prog.Disallow(node.T(X), solver.Not(reach.T(X)))

				pathVars = [4][4]solver.VarID{}
				path.Bind(func(args []solver.Symbol) solver.VarID {
					x, y := args[0].Int(), args[1].Int()
					pathVars[x][y] = s.NewBoolean(fmt.Sprintf("path(%d,%d)", x, y))
					return pathVars[x][y]
				})

				s.AddProgram(prog.Instantiate())
				return s
			}
			return runProblem(opts, build, func(s *solver.Solver) {
				at := 0
				for i := 0; i < 4; i++ {
					for y := 0; y < 4; y++ {
						if pathVars[at][y].IsValid() && s.SolvedValue(pathVars[at][y]) == 1 {
							fmt.Printf("%d -> %d\n", at, y)
							at = y
							break
						}
					}
				}
			})
		},
	}
}
